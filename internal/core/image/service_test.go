package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carb-estimator/internal/pkg/common"

	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngDataURI(t *testing.T) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))
}

func TestProcessImageDataURI(t *testing.T) {
	t.Parallel()
	svc := NewService(1<<20, time.Second)

	out, err := svc.ProcessImage(context.Background(), pngDataURI(t))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "data:image/jpeg;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(out, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	_, format, err := image.Decode(bytes.NewReader(decoded))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
}

func TestProcessImageURL(t *testing.T) {
	t.Parallel()
	data := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	svc := NewService(1<<20, time.Second)
	out, err := svc.ProcessImages(context.Background(), []string{srv.URL + "/meal.png", pngDataURI(t)})
	require.NoError(t, err)
	require.Len(t, out, 2)

	_, err = svc.ProcessImages(context.Background(), []string{srv.URL + "/meal.png", srv.URL + "/missing.png"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "image 2")
	require.ErrorIs(t, err, common.ErrInvalidImageFormat)
}

func TestValidateImageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		maxSize int64
		wantErr error
	}{
		{
			name:    "plain text",
			input:   "not an image",
			maxSize: 1 << 20,
			wantErr: common.ErrInvalidImageFormat,
		},
		{
			name:    "missing base64 marker",
			input:   "data:image/png," + base64.StdEncoding.EncodeToString([]byte("x")),
			maxSize: 1 << 20,
			wantErr: common.ErrInvalidImageFormat,
		},
		{
			name:    "bad base64",
			input:   "data:image/png;base64,!!!",
			maxSize: 1 << 20,
			wantErr: common.ErrInvalidImageFormat,
		},
		{
			name:    "not decodable",
			input:   "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello world")),
			maxSize: 1 << 20,
			wantErr: common.ErrInvalidImageFormat,
		},
		{
			name:    "too large",
			input:   "",
			maxSize: 10,
			wantErr: common.ErrInvalidImageSize,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			input := tt.input
			if input == "" {
				input = pngDataURI(t)
			}
			err := NewService(tt.maxSize, time.Second).ValidateImage(context.Background(), input)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	require.NoError(t, NewService(1<<20, time.Second).ValidateImage(context.Background(), pngDataURI(t)))
}

func TestDownscale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		w, h, maxDim int
		wantW, wantH int
	}{
		{name: "landscape", w: 2400, h: 1200, maxDim: 1200, wantW: 1200, wantH: 600},
		{name: "portrait", w: 300, h: 900, maxDim: 300, wantW: 100, wantH: 300},
		{name: "already small", w: 40, h: 30, maxDim: 1200, wantW: 40, wantH: 30},
		{name: "disabled", w: 40, h: 30, maxDim: 0, wantW: 40, wantH: 30},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := downscale(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)), tt.maxDim)
			require.Equal(t, tt.wantW, out.Bounds().Dx())
			require.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}
}
