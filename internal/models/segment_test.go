package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentString(t *testing.T) {
	k := SegmentKey{AdapterID: "alpha", Country: "US", Format: FormatBanner, Currency: "USD"}
	assert.Equal(t, "alpha:US:banner:USD", k.String())

	k.Country = ""
	assert.Equal(t, "alpha:unknown:banner:USD", k.String(), "missing geo pools into the unknown segment")
}

func TestSegmentFromRequest(t *testing.T) {
	req := AuctionRequest{
		Format:   FormatVideo,
		Currency: "EUR",
		Device:   DeviceContext{Country: "DE"},
	}
	k := Segment("beta", req)
	assert.Equal(t, SegmentKey{AdapterID: "beta", Country: "DE", Format: FormatVideo, Currency: "EUR"}, k)
}

func TestAdFormatValid(t *testing.T) {
	assert.True(t, FormatBanner.Valid())
	assert.True(t, FormatVideo.Valid())
	assert.True(t, FormatNative.Valid())
	assert.False(t, AdFormat("popup").Valid())
	assert.False(t, AdFormat("").Valid())
}
