package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/agnosto/fbtweeter/utils"
)

// ImageFetcher downloads post images into memory for upload.
type ImageFetcher struct {
	Client   *http.Client
	MaxBytes int64
	// Progress, when set, receives a download progress bar.
	Progress io.Writer
}

func NewImageFetcher(timeout time.Duration, maxBytes int64) *ImageFetcher {
	return &ImageFetcher{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: maxBytes,
	}
}

// Fetch returns the image bytes and a file name for the upload form.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("error creating request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image download failed with status code %d", resp.StatusCode)
	}
	if f.MaxBytes > 0 && resp.ContentLength > f.MaxBytes {
		return nil, "", fmt.Errorf("image is %s, limit is %s",
			humanize.Bytes(uint64(resp.ContentLength)), humanize.Bytes(uint64(f.MaxBytes)))
	}

	name := utils.GetFileNameFromURL(imageURL)
	if name == "" || name == "/" || name == "." || path.Ext(name) == "" {
		name = "image.jpg"
	}

	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}

	buf := &bytes.Buffer{}
	var dst io.Writer = buf
	if f.Progress != nil {
		bar := progressbar.NewOptions64(
			resp.ContentLength,
			progressbar.OptionSetWriter(f.Progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s (%s)", name, sizeLabel(resp.ContentLength))),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(15*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		dst = io.MultiWriter(buf, bar)
	}

	if _, err := io.Copy(dst, body); err != nil {
		return nil, "", fmt.Errorf("error reading image: %w", err)
	}
	if f.MaxBytes > 0 && int64(buf.Len()) > f.MaxBytes {
		return nil, "", fmt.Errorf("image exceeds %s", humanize.Bytes(uint64(f.MaxBytes)))
	}
	return buf.Bytes(), name, nil
}

func sizeLabel(n int64) string {
	if n < 0 {
		return "unknown size"
	}
	return humanize.Bytes(uint64(n))
}
