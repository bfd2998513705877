package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDialNATS_Unreachable(t *testing.T) {
	_, err := DialNATS(NATSConfig{
		URL:     "nats://127.0.0.1:1",
		Name:    "invite-dispatcher-test",
		Timeout: 200 * time.Millisecond,
	})
	assert.ErrorContains(t, err, "connect to NATS")
}
