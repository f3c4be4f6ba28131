package imagestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erazemk/zapuscina/internal/airtable"
)

// FieldImageURLs holds the JSON array of hosted image links.
const FieldImageURLs = "ImageURLs"

// Uploader pushes an image to a hosting service and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, name, base64Data string) (string, error)
}

// Hosted uploads embedded images and stores only their links.
type Hosted struct {
	Uploader Uploader
}

func (*Hosted) Name() string { return NameHosted }

func (h *Hosted) Encode(ctx context.Context, images []string) (airtable.Fields, error) {
	urls := make([]string, 0, len(images))
	for i, img := range images {
		if !IsDataURL(img) {
			urls = append(urls, img)
			continue
		}
		_, payload, ok := strings.Cut(img, ",")
		if !ok {
			return nil, fmt.Errorf("image %d: malformed data URL", i+1)
		}
		link, err := h.Uploader.Upload(ctx, fmt.Sprintf("image-%d", i+1), payload)
		if err != nil {
			return nil, fmt.Errorf("uploading image %d: %w", i+1, err)
		}
		urls = append(urls, link)
	}
	raw, err := encodeList(urls)
	if err != nil {
		return nil, err
	}
	return airtable.Fields{FieldImageURLs: raw}, nil
}

func (*Hosted) Decode(fields airtable.Fields) ([]string, error) {
	return decodeList(stringField(fields, FieldImageURLs))
}

// DefaultImgBBURL is the upload endpoint of the ImgBB hosting service.
const DefaultImgBBURL = "https://api.imgbb.com/1/upload"

// ImgBB uploads images with an API key passed as a query parameter.
type ImgBB struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client
}

// NewImgBB returns an uploader for the public ImgBB endpoint.
func NewImgBB(apiKey string) *ImgBB {
	return &ImgBB{
		Endpoint: DefaultImgBBURL,
		APIKey:   apiKey,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
	}
}

type imgbbResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Success bool `json:"success"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (u *ImgBB) Upload(ctx context.Context, name, base64Data string) (string, error) {
	if u.APIKey == "" {
		return "", errors.New("image host API key missing")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("image", base64Data); err != nil {
		return "", fmt.Errorf("writing form: %w", err)
	}
	if err := mw.WriteField("name", name); err != nil {
		return "", fmt.Errorf("writing form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	endpoint := u.Endpoint + "?key=" + url.QueryEscape(u.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := u.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending upload: %w", err)
	}
	defer resp.Body.Close()

	var out imgbbResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("image host returned %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success || out.Data.URL == "" {
		msg := out.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("image host: %s", msg)
	}
	return out.Data.URL, nil
}
