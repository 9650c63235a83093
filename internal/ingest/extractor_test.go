package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStrategy(t *testing.T) {
	assert.Equal(t, strategyPlainText, resolveStrategy("text/plain"))
	assert.Equal(t, strategyPlainText, resolveStrategy("text/markdown"))
	assert.Equal(t, strategyPDF, resolveStrategy("application/pdf"))
	assert.Equal(t, strategyImage, resolveStrategy("image/png"))
	assert.Equal(t, strategyImage, resolveStrategy("image/jpeg"))
	assert.Equal(t, strategyOffice, resolveStrategy(mimeDocx))
	assert.Equal(t, strategyOffice, resolveStrategy(mimeXlsx))
	assert.Equal(t, strategyUnsupported, resolveStrategy("application/zip"))
	assert.Equal(t, strategyUnsupported, resolveStrategy(""))
}

func TestExtract_PlainText(t *testing.T) {
	e := NewExtractor(&fakeGateway{}, "")
	res := e.Extract(context.Background(), []byte("  hello world\n"), "text/plain")

	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, 1, res.Pages)
	assert.Empty(t, res.Degraded)
}

func TestExtract_InvalidUTF8IsDegraded(t *testing.T) {
	e := NewExtractor(&fakeGateway{}, "")
	res := e.Extract(context.Background(), []byte{'h', 'i', 0xff, 0xfe}, "text/plain")

	require.NotEmpty(t, res.Text)
	assert.Contains(t, res.Degraded, "UTF-8")
}

func TestExtract_ImageViaVision(t *testing.T) {
	gw := &fakeGateway{chatContent: "Receipt\nCoffee 2 x 3.50\nTotal 7.00"}
	e := NewExtractor(gw, "vision-model")

	res := e.Extract(context.Background(), []byte{0x89, 0x50}, "image/png")

	assert.Equal(t, "Receipt\nCoffee 2 x 3.50\nTotal 7.00", res.Text)
	assert.Equal(t, 1, res.Pages)
	assert.Empty(t, res.Degraded)
	assert.Equal(t, 1, gw.chatCalls)
	assert.Equal(t, "vision-model", gw.lastReq.Model)
}

func TestExtract_VisionFailureDegrades(t *testing.T) {
	gw := &fakeGateway{chatErr: errors.New("provider down")}
	e := NewExtractor(gw, "")

	res := e.Extract(context.Background(), []byte{0x89}, "image/png")

	// The document still gets a searchable placeholder body.
	assert.Equal(t, "[Unsupported document type: image/png]", res.Text)
	assert.Contains(t, res.Degraded, "vision extraction failed")
}

func TestExtract_UnsupportedType(t *testing.T) {
	gw := &fakeGateway{}
	e := NewExtractor(gw, "")

	res := e.Extract(context.Background(), []byte("PK"), "application/zip")

	assert.Equal(t, "[Unsupported document type: application/zip]", res.Text)
	assert.Contains(t, res.Degraded, "unsupported mime type")
	assert.Zero(t, gw.chatCalls)
}
