package mcp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFramedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	id := int64(7)
	req := JSONRPCRequest{JSONRPC: "2.0", ID: &id, Method: "tools/list"}
	require.NoError(t, writeFramed(&buf, req))

	var got JSONRPCRequest
	require.NoError(t, decodeFramed(bufio.NewReader(&buf), &got))
	assert.Equal(t, req.Method, got.Method)
	require.NotNil(t, got.ID)
	assert.Equal(t, int64(7), *got.ID)
}

func TestReadFramedMissingContentLength(t *testing.T) {
	buf := bytes.NewBufferString("\r\n{}")
	_, err := readFramed(bufio.NewReader(buf))
	assert.Error(t, err)
}

func TestReadFramedMalformedContentLength(t *testing.T) {
	buf := bytes.NewBufferString("Content-Length: notanumber\r\n\r\n{}")
	_, err := readFramed(bufio.NewReader(buf))
	assert.Error(t, err)
}
