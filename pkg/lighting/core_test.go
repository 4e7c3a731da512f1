package lighting

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldworks/cropbed-control/pkg/logger"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	log, err := logger.New(logger.NewConfig())
	require.NoError(t, err)
	return &Core{log: log}
}

func TestHandleMessageMalformedJSONIsIgnored(t *testing.T) {
	c := newTestCore(t)
	// Must not panic; a malformed line is logged and dropped.
	c.handleMessage([]byte("not json\n"))
}

func TestHandleMessageMissingPDMIsIgnored(t *testing.T) {
	c := newTestCore(t)
	c.pdms = nil
	// No pdm at index 0: handleMessage logs a warning and returns without
	// attempting to actuate.
	c.handleMessage([]byte(`{"channels":[1,2],"is_on":true,"cam_id":0,"crop_bed_id":0}` + "\n"))
}
