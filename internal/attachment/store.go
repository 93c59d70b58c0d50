package attachment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"hivechat/internal/domain"
)

var ErrStoreNotConfigured = errors.New("attachment: store not configured")

// ObjectStore holds arbitrary files and returns their public URL.
type ObjectStore interface {
	PutFile(ctx context.Context, a Asset) (string, error)
}

// MediaStore holds images, videos and audio and returns their delivery URL.
type MediaStore interface {
	Upload(ctx context.Context, a Asset) (string, error)
}

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store puts files into one bucket under a key prefix.
type S3Store struct {
	api    S3API
	bucket string
	region string
	prefix string
	now    func() time.Time
}

// NewS3Store builds a store from the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket, region, prefix string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3StoreWithAPI(s3.NewFromConfig(cfg), bucket, region, prefix), nil
}

func NewS3StoreWithAPI(api S3API, bucket, region, prefix string) *S3Store {
	return &S3Store{api: api, bucket: bucket, region: region, prefix: prefix, now: time.Now}
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key is the object key used for a file name at t.
func (s *S3Store) Key(name string, t time.Time) string {
	clean := unsafeKeyChars.ReplaceAllString(path.Base(name), "_")
	if clean == "" || clean == "." || clean == "_" {
		clean = "file"
	}
	return s.prefix + strconv.FormatInt(t.UnixMilli(), 10) + "-" + clean
}

// PutFile uploads the asset and returns its URL carrying the original file
// name in the filename query parameter.
func (s *S3Store) PutFile(ctx context.Context, a Asset) (string, error) {
	key := s.Key(a.Filename, s.now())
	ct := a.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(a.Data),
		ContentType:   aws.String(ct),
		ContentLength: aws.Int64(int64(len(a.Data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	u := url.URL{
		Scheme:   "https",
		Host:     fmt.Sprintf("%s.s3.%s.amazonaws.com", s.bucket, s.region),
		Path:     "/" + key,
		RawQuery: url.Values{domain.FileNameParam: {a.Filename}}.Encode(),
	}
	return u.String(), nil
}

// HTTPMediaStore posts unsigned multipart uploads to a media service.
type HTTPMediaStore struct {
	imageURL string
	videoURL string
	preset   string
	http     *http.Client
}

func NewHTTPMediaStore(imageURL, videoURL, preset string, hc *http.Client) *HTTPMediaStore {
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPMediaStore{imageURL: imageURL, videoURL: videoURL, preset: preset, http: hc}
}

func (m *HTTPMediaStore) endpoint(a Asset) (string, error) {
	switch a.Kind() {
	case domain.KindImage:
		return m.imageURL, nil
	case domain.KindVideo, domain.KindAudio:
		return m.videoURL, nil
	}
	return "", fmt.Errorf("media upload of %s: %w", a.ContentType, domain.ErrInvalidInput)
}

type mediaResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (m *HTTPMediaStore) Upload(ctx context.Context, a Asset) (string, error) {
	endpoint, err := m.endpoint(a)
	if err != nil {
		return "", err
	}
	if endpoint == "" {
		return "", ErrStoreNotConfigured
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", a.Filename)
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if _, err := fw.Write(a.Data); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if m.preset != "" {
		if err := mw.WriteField("upload_preset", m.preset); err != nil {
			return "", fmt.Errorf("build form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", a.Filename, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	var out mediaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("upload %s: http %d: %w", a.Filename, resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if out.Error != nil {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("upload %s: http %d: %s", a.Filename, resp.StatusCode, msg)
	}
	if out.SecureURL != "" {
		return out.SecureURL, nil
	}
	if out.URL != "" {
		return out.URL, nil
	}
	return "", fmt.Errorf("upload %s: response has no url", a.Filename)
}
