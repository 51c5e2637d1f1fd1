package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "00小時 00分鐘 00秒"},
		{59, "00小時 00分鐘 59秒"},
		{60, "00小時 01分鐘 00秒"},
		{3661, "01小時 01分鐘 01秒"},
		{86400, "24小時 00分鐘 00秒"},
		{360000, "100小時 00分鐘 00秒"},
		{-5, "00小時 00分鐘 00秒"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.seconds), "seconds=%d", tt.seconds)
	}
}
