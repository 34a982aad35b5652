package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers the handful of path-style S3 calls S3Store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

type fakeObject struct {
	body        []byte
	contentType string
}

func newMockS3Store(t *testing.T, prefix string) *S3Store {
	t.Helper()
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	rt := &fakeS3{objects: make(map[string]fakeObject)}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return newS3Store(client, "test-bucket", prefix)
}

func response(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: header}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := ""
	if parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2); len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		keys := make([]string, 0, len(f.objects))
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>",
				k, len(f.objects[k].body))
		}
		b.WriteString("</ListBucketResult>")
		return response(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}}), nil
	}

	obj, ok := f.objects[key]
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		if !ok {
			return response(http.StatusNotFound, nil, nil), nil
		}
		header := http.Header{
			"Content-Length": {strconv.Itoa(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Etag":           {`"etag"`},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
		}
		if req.Method == http.MethodHead {
			return response(http.StatusOK, nil, header), nil
		}
		return response(http.StatusOK, obj.body, header), nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type")}
		return response(http.StatusOK, nil, http.Header{"Etag": {`"etag"`}}), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return response(http.StatusNoContent, nil, nil), nil
	}
	return response(http.StatusNotImplemented, nil, nil), nil
}

// decodeChunked unwraps a single-chunk aws-chunked body.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.SplitN(string(b), "\r\n", 3)
	if len(parts) < 3 {
		return nil, false
	}
	size, err := strconv.ParseInt(strings.SplitN(parts[0], ";", 2)[0], 16, 64)
	if err != nil || int64(len(parts[1])) != size {
		return nil, false
	}
	return []byte(parts[1]), true
}
