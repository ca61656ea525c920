package notification

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type countingNotifier struct {
	calls atomic.Int32
	err   error
}

func (c *countingNotifier) NotifyIdentityCreated(context.Context, string, string) error {
	c.calls.Add(1)
	return c.err
}

func TestFanout(t *testing.T) {
	t.Run("every channel is tried even when one fails", func(t *testing.T) {
		failing := &countingNotifier{err: errors.New("smtp refused")}
		ok := &countingNotifier{}

		err := NewFanout(failing, ok).NotifyIdentityCreated(context.Background(), "a@univ.dz", "STU202400001")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "smtp refused")
		assert.Equal(t, int32(1), failing.calls.Load())
		assert.Equal(t, int32(1), ok.calls.Load())
	})

	t.Run("no channels is a no-op", func(t *testing.T) {
		assert.NoError(t, NewFanout().NotifyIdentityCreated(context.Background(), "a@univ.dz", "STU202400001"))
	})
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.NotifyIdentityCreated(context.Background(), "a@univ.dz", "STU202400001"))
	assert.Contains(t, buf.String(), `"identity_id":"STU202400001"`)
}

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.sent = append(f.sent, msgs...)
	return f.err
}

func TestSMTP(t *testing.T) {
	t.Run("sends the confirmation with the identifier", func(t *testing.T) {
		sender := &fakeSender{}
		n := &SMTP{from: "registrar@univ.dz", sender: sender}

		require.NoError(t, n.NotifyIdentityCreated(context.Background(), "amina@univ.dz", "STU202400001"))
		require.Len(t, sender.sent, 1)

		var raw bytes.Buffer
		_, err := sender.sent[0].WriteTo(&raw)
		require.NoError(t, err)
		assert.Contains(t, raw.String(), "Subject: Identity Created")
		assert.Contains(t, raw.String(), "Your ID: STU202400001")
		assert.Contains(t, raw.String(), "amina@univ.dz")
	})

	t.Run("delivery failure is returned", func(t *testing.T) {
		n := &SMTP{from: "registrar@univ.dz", sender: &fakeSender{err: errors.New("535 auth failed")}}

		err := n.NotifyIdentityCreated(context.Background(), "amina@univ.dz", "STU202400001")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "535 auth failed")
	})

	t.Run("malformed recipient is rejected before dialing", func(t *testing.T) {
		sender := &fakeSender{}
		n := &SMTP{from: "registrar@univ.dz", sender: sender}

		require.Error(t, n.NotifyIdentityCreated(context.Background(), "not an address", "STU202400001"))
		assert.Empty(t, sender.sent)
	})
}
