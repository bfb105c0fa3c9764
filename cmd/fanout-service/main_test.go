package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEvent = `{"Records":[{"messageId":"m-1","receiptHandle":"r-1","body":"{}","attributes":{"ApproximateReceiveCount":"2"}}]}`

func TestReadEvent_Stdin(t *testing.T) {
	event, err := readEvent(strings.NewReader(sampleEvent), "-")
	require.NoError(t, err)
	require.Len(t, event.Records, 1)
	assert.Equal(t, "m-1", event.Records[0].MessageID)
	assert.Equal(t, "r-1", event.Records[0].ReceiptHandle)
}

func TestReadEvent_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleEvent), 0o600))

	event, err := readEvent(strings.NewReader(""), path)
	require.NoError(t, err)
	require.Len(t, event.Records, 1)
}

func TestReadEvent_Errors(t *testing.T) {
	_, err := readEvent(strings.NewReader("not json"), "-")
	assert.Error(t, err)

	_, err = readEvent(nil, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
