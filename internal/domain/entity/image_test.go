package entity

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStyle(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr string
	}{
		{in: "", want: ""},
		{in: "  ", want: ""},
		{in: "flux", want: "flux"},
		{in: " Anime Dreams ", want: "Anime Dreams"},
		{in: "sdxl-1.0", want: "sdxl-1.0"},
		{in: "../../outside", wantErr: "dot"},
		{in: "..", wantErr: "dot"},
		{in: ".hidden", wantErr: "dot"},
		{in: "a/b", wantErr: "path separators"},
		{in: `a\b`, wantErr: "path separators"},
		{in: "nul\x00byte", wantErr: "path separators"},
		{in: "landscape", wantErr: "reserved"},
		{in: "Portrait", wantErr: "reserved"},
		{in: strings.Repeat("x", maxStyleLength+1), wantErr: "longer than"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStyle(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPartition_Validate(t *testing.T) {
	assert.NoError(t, Partition{Orientation: OrientationLandscape}.Validate())
	assert.NoError(t, Partition{Orientation: OrientationPortrait, Style: "flux"}.Validate())

	assert.Error(t, Partition{}.Validate(), "missing orientation")
	assert.Error(t, Partition{Orientation: OrientationLandscape, Style: "../x"}.Validate())
	assert.Error(t, Partition{Orientation: OrientationLandscape, Style: " flux"}.Validate())
}

func TestPartition_Dir(t *testing.T) {
	assert.Equal(t, "landscape", Partition{Orientation: OrientationLandscape}.Dir())
	assert.Equal(t, filepath.Join("flux", "portrait"), Partition{Orientation: OrientationPortrait, Style: "flux"}.Dir())
	assert.Equal(t, "flux/portrait", Partition{Orientation: OrientationPortrait, Style: "flux"}.String())
}
