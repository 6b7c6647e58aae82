// Package client talks to a shardlist server through the AWS S3 SDK: it
// lists bucket pages, reads, writes and deletes objects, and walks whole
// buckets.
package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/pkg/errors"
)

const (
	defaultTimeout = 5 * time.Second

	// region is only used for request signing; the server ignores it.
	region = "us-east-1"
)

// Request selects one page. Zero MaxKeys and ReadAhead leave the choice to
// the server.
type Request struct {
	Marker    string
	Delimiter string
	MaxKeys   int
	ReadAhead int
}

// Page is one listing page: keys and common prefixes, each in byte order.
type Page struct {
	Contents       []string
	CommonPrefixes []string
	IsTruncated    bool
	NextMarker     string
}

// Client is a shardlist client.
type Client struct {
	base string
	http *http.Client
	s3   *s3.Client
}

// New creates a client for the server at base, e.g. "http://localhost:8080".
// A nil httpClient gets a default with a 5 second timeout.
func New(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	base = strings.TrimRight(base, "/")

	return &Client{
		base: base,
		http: httpClient,
		s3: s3.New(s3.Options{
			Region:                     region,
			BaseEndpoint:               aws.String(base),
			UsePathStyle:               true,
			Credentials:                credentials.NewStaticCredentialsProvider("shardlist", "shardlist", ""),
			HTTPClient:                 httpClient,
			RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
			ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
		}),
	}
}

// ErrorCode returns the S3 error code carried by err, such as
// "NoSuchBucket", or "" when err is not an S3 error.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// withQuery sets name=value on the request's query string. ListObjectsInput
// has no field for the read-ahead hint.
func withQuery(name, value string) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Build.Add(middleware.BuildMiddlewareFunc("shardlist."+name,
			func(ctx context.Context, in middleware.BuildInput, next middleware.BuildHandler) (middleware.BuildOutput, middleware.Metadata, error) {
				if req, ok := in.Request.(*smithyhttp.Request); ok {
					q := req.URL.Query()
					q.Set(name, value)
					req.URL.RawQuery = q.Encode()
				}
				return next.HandleBuild(ctx, in)
			}), middleware.After)
	}
}

// ListPage fetches one page of bucket.
func (c *Client) ListPage(ctx context.Context, bucket string, req Request) (*Page, error) {
	in := &s3.ListObjectsInput{Bucket: aws.String(bucket)}
	if req.Marker != "" {
		in.Marker = aws.String(req.Marker)
	}
	if req.Delimiter != "" {
		in.Delimiter = aws.String(req.Delimiter)
	}
	if req.MaxKeys > 0 {
		in.MaxKeys = aws.Int32(int32(req.MaxKeys))
	}
	var opts []func(*s3.Options)
	if req.ReadAhead > 0 {
		opts = append(opts, s3.WithAPIOptions(withQuery("read-ahead", strconv.Itoa(req.ReadAhead))))
	}

	out, err := c.s3.ListObjects(ctx, in, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", bucket)
	}

	page := &Page{
		Contents:       make([]string, 0, len(out.Contents)),
		CommonPrefixes: make([]string, 0, len(out.CommonPrefixes)),
		IsTruncated:    aws.ToBool(out.IsTruncated),
		NextMarker:     aws.ToString(out.NextMarker),
	}
	for _, obj := range out.Contents {
		page.Contents = append(page.Contents, aws.ToString(obj.Key))
	}
	for _, prefix := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(prefix.Prefix))
	}
	return page, nil
}

// Put stores key in bucket with body, which may be empty.
func (c *Client) Put(ctx context.Context, bucket, key string, body []byte) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	return errors.Wrapf(err, "put %s/%s", bucket, key)
}

// Get returns the body stored with key.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get %s/%s", bucket, key)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s/%s", bucket, key)
	}
	return body, nil
}

// Delete removes key from bucket.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return errors.Wrapf(err, "delete %s/%s", bucket, key)
}

// Health reports whether the server answers its health check. The check is
// not part of the S3 API, so it goes over plain HTTP.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "health")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "health")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("health: http %d", resp.StatusCode)
	}
	return nil
}

// Walk pages through bucket from req.Marker, calling fn with every key and
// common prefix in order. A page that reports truncation is followed by
// another starting at its NextMarker; the walk ends at the first page that
// does not. fn returning an error stops the walk with that error.
func (c *Client) Walk(ctx context.Context, bucket string, req Request, fn func(item string, isPrefix bool) error) error {
	for {
		page, err := c.ListPage(ctx, bucket, req)
		if err != nil {
			return err
		}
		if err := visit(page, fn); err != nil {
			return err
		}
		if !page.IsTruncated || page.NextMarker == "" {
			return nil
		}
		req.Marker = page.NextMarker
	}
}

// visit calls fn over a page's contents and prefixes merged back into key
// order.
func visit(page *Page, fn func(string, bool) error) error {
	i, j := 0, 0
	for i < len(page.Contents) || j < len(page.CommonPrefixes) {
		if j == len(page.CommonPrefixes) || (i < len(page.Contents) && page.Contents[i] < page.CommonPrefixes[j]) {
			if err := fn(page.Contents[i], false); err != nil {
				return err
			}
			i++
			continue
		}
		if err := fn(page.CommonPrefixes[j], true); err != nil {
			return err
		}
		j++
	}
	return nil
}
