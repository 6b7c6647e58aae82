package server

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pachyderm/s2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/dreamware/shardlist/internal/coordinator"
	"github.com/dreamware/shardlist/internal/listing"
	"github.com/dreamware/shardlist/internal/storage"
)

const (
	// region is what GetBucketLocation reports.
	region = "us-east-1"

	storageClass = "STANDARD"

	// MaxObjectSize caps the body of a PUT.
	MaxObjectSize = 8 << 20

	maxRequestBodyLength = 1 << 20
	readBodyTimeout      = 10 * time.Second
)

var owner = s2.User{
	ID:          "0000000000000000000000000000000000000000000000000000000000000000",
	DisplayName: "shardlist",
}

// s3Router builds the S3 API for the server's bucket.
func (s *Server) s3Router() *mux.Router {
	api := s2.NewS2(logrusEntry(s.logger.Named("s3")), maxRequestBodyLength, readBodyTimeout)
	api.Service = &serviceController{s}
	api.Bucket = &bucketController{s}
	api.Object = &objectController{s}
	return api.Router()
}

// zapHook forwards logrus entries to zap, keeping their level and fields.
type zapHook struct {
	logger *zap.Logger
}

func (h zapHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h zapHook) Fire(e *logrus.Entry) error {
	fields := make([]zap.Field, 0, len(e.Data))
	for k, v := range e.Data {
		fields = append(fields, zap.Any(k, v))
	}
	switch e.Level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		h.logger.Error(e.Message, fields...)
	case logrus.WarnLevel:
		h.logger.Warn(e.Message, fields...)
	case logrus.InfoLevel:
		h.logger.Info(e.Message, fields...)
	default:
		h.logger.Debug(e.Message, fields...)
	}
	return nil
}

// logrusEntry adapts logger for the S3 router, which logs through logrus.
func logrusEntry(logger *zap.Logger) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.TraceLevel)
	l.AddHook(zapHook{logger: logger})
	return logrus.NewEntry(l)
}

func requestID(r *http.Request) string {
	return mux.Vars(r)["requestID"]
}

func invalidArgumentError(r *http.Request, message string) *s2.Error {
	return s2.NewError(r, http.StatusBadRequest, "InvalidArgument", message)
}

func entityTooLargeError(r *http.Request) *s2.Error {
	return s2.NewError(r, http.StatusBadRequest, "EntityTooLarge",
		fmt.Sprintf("Your proposed upload exceeds the maximum allowed object size of %d bytes.", MaxObjectSize))
}

func bucketAlreadyOwnedByYouError(r *http.Request) *s2.Error {
	return s2.NewError(r, http.StatusConflict, "BucketAlreadyOwnedByYou",
		"The bucket you tried to create already exists, and you own it.")
}

// intFormValue reads an integer form value in [lo, hi], def when absent.
func intFormValue(r *http.Request, name string, lo, hi, def int) (int, error) {
	s := r.FormValue(name)
	if s == "" {
		return def, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < lo || i > hi {
		return 0, invalidArgumentError(r, fmt.Sprintf("%s must be an integer between %d and %d", name, lo, hi))
	}
	return i, nil
}

func etag(body []byte) string {
	return fmt.Sprintf("%x", md5.Sum(body))
}

type serviceController struct {
	s *Server
}

// ListBuckets reports the one bucket the server holds.
func (c *serviceController) ListBuckets(r *http.Request) (*s2.ListBucketsResult, error) {
	return &s2.ListBucketsResult{
		Owner: &owner,
		Buckets: []*s2.Bucket{{
			Name:         c.s.bucket.Name,
			CreationDate: c.s.created,
		}},
	}, nil
}

type bucketController struct {
	s *Server
}

func (c *bucketController) GetLocation(r *http.Request, name string) (string, error) {
	if name != c.s.bucket.Name {
		return "", s2.NoSuchBucketError(r)
	}
	return region, nil
}

// ListObjects serves one page of keys and common prefixes through the
// Lister. The read-ahead hint travels as an extra query parameter.
func (c *bucketController) ListObjects(r *http.Request, name, prefix, marker, delimiter string, maxKeys int) (*s2.ListObjectsResult, error) {
	s := c.s
	if name != s.bucket.Name {
		return nil, s2.NoSuchBucketError(r)
	}
	if prefix != "" {
		return nil, s2.NotImplementedError(r)
	}
	readAhead, err := intFormValue(r, "read-ahead", 0, MaxReadAhead, s.readAhead)
	if err != nil {
		return nil, err
	}
	d, err := listing.ParseDelimiter(delimiter)
	if err != nil {
		return nil, invalidArgumentError(r, err.Error())
	}

	page, err := s.lister.ListPage(r.Context(), coordinator.PageRequest{
		Marker:    marker,
		Delimiter: d,
		MaxKeys:   maxKeys,
		ReadAhead: readAhead,
	})
	if err != nil {
		if errors.Is(err, listing.ErrInvariant) {
			s.logger.Error("listing invariant violated", zap.Error(err), zap.String("marker", marker))
		}
		return nil, s2.InternalError(r, err)
	}
	s.metrics.ObserveTelemetry(page.Telemetry)

	s.logger.Debug("list",
		zap.String("request_id", requestID(r)),
		zap.String("marker", marker),
		zap.Int("max_keys", maxKeys),
		zap.Int("returned", len(page.Items)),
		zap.Bool("truncated", page.IsTruncated),
		zap.Int("shard_calls", page.Telemetry.ShardCalls))

	return s.listObjectsResult(d, maxKeys, page), nil
}

// listObjectsResult shapes a page for the wire. A full page is reported as
// truncated: the page's own flag may be stale when it filled up in the middle
// of a merge, and a client that follows up on a full page at worst receives
// an empty one. The S3 router derives NextMarker from the last item.
func (s *Server) listObjectsResult(d listing.Delimiter, maxKeys int, page listing.Page) *s2.ListObjectsResult {
	result := &s2.ListObjectsResult{
		Contents:       []*s2.Contents{},
		CommonPrefixes: []*s2.CommonPrefixes{},
		IsTruncated:    page.IsTruncated || (maxKeys > 0 && len(page.Items) == maxKeys),
	}
	for _, item := range page.Items {
		if prefix, ok := d.CommonPrefix(item); ok && prefix == item {
			result.CommonPrefixes = append(result.CommonPrefixes, &s2.CommonPrefixes{Prefix: item, Owner: owner})
			continue
		}
		result.Contents = append(result.Contents, &s2.Contents{
			Key:          item,
			LastModified: s.created,
			StorageClass: storageClass,
			Owner:        owner,
		})
	}
	return result
}

func (c *bucketController) ListObjectVersions(r *http.Request, name, prefix, keyMarker, versionMarker string, delimiter string, maxKeys int) (*s2.ListObjectVersionsResult, error) {
	if name != c.s.bucket.Name {
		return nil, s2.NoSuchBucketError(r)
	}
	return nil, s2.NotImplementedError(r)
}

// CreateBucket only acknowledges the bucket the server was started with.
func (c *bucketController) CreateBucket(r *http.Request, name string) error {
	if name == c.s.bucket.Name {
		return bucketAlreadyOwnedByYouError(r)
	}
	return s2.NotImplementedError(r)
}

func (c *bucketController) DeleteBucket(r *http.Request, name string) error {
	if name != c.s.bucket.Name {
		return s2.NoSuchBucketError(r)
	}
	return s2.NotImplementedError(r)
}

func (c *bucketController) GetBucketVersioning(r *http.Request, name string) (string, error) {
	if name != c.s.bucket.Name {
		return "", s2.NoSuchBucketError(r)
	}
	return s2.VersioningDisabled, nil
}

func (c *bucketController) SetBucketVersioning(r *http.Request, name, status string) error {
	if name != c.s.bucket.Name {
		return s2.NoSuchBucketError(r)
	}
	return s2.NotImplementedError(r)
}

type objectController struct {
	s *Server
}

// GetObject serves the body stored with key. HEAD is answered from the same
// result.
func (c *objectController) GetObject(r *http.Request, name, key, version string) (*s2.GetObjectResult, error) {
	if name != c.s.bucket.Name {
		return nil, s2.NoSuchBucketError(r)
	}
	if version != "" {
		return nil, s2.NotImplementedError(r)
	}
	body, err := c.s.bucket.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, s2.NoSuchKeyError(r)
		}
		return nil, s2.InternalError(r, err)
	}
	return &s2.GetObjectResult{
		ETag:    etag(body),
		ModTime: c.s.created,
		Content: bytes.NewReader(body),
	}, nil
}

func (c *objectController) CopyObject(r *http.Request, srcBucket, srcKey string, getResult *s2.GetObjectResult, destBucket, destKey string) (string, error) {
	return "", s2.NotImplementedError(r)
}

// PutObject indexes key and stores its body on the owning shard.
func (c *objectController) PutObject(r *http.Request, name, key string, reader io.Reader) (*s2.PutObjectResult, error) {
	if name != c.s.bucket.Name {
		return nil, s2.NoSuchBucketError(r)
	}
	body, err := io.ReadAll(io.LimitReader(reader, MaxObjectSize+1))
	if err != nil {
		return nil, s2.InternalError(r, errors.Wrap(err, "read body"))
	}
	if len(body) > MaxObjectSize {
		return nil, entityTooLargeError(r)
	}
	if err := c.s.bucket.PutObject(key, body); err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			return nil, invalidArgumentError(r, err.Error())
		}
		return nil, s2.InternalError(r, err)
	}
	return &s2.PutObjectResult{ETag: etag(body)}, nil
}

// DeleteObject removes key. Deleting a missing key succeeds.
func (c *objectController) DeleteObject(r *http.Request, name, key, version string) (*s2.DeleteObjectResult, error) {
	if name != c.s.bucket.Name {
		return nil, s2.NoSuchBucketError(r)
	}
	if version != "" {
		return nil, s2.NotImplementedError(r)
	}
	if err := c.s.bucket.Delete(key); err != nil {
		return nil, s2.InternalError(r, err)
	}
	return &s2.DeleteObjectResult{}, nil
}
