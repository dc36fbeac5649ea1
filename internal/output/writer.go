package output

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/schollz/progressbar/v3"

	"awsinventory/internal/inventory"
	"awsinventory/internal/logging"
)

const (
	defaultMaxRetries        = 3
	defaultRetryDelay        = 2 * time.Second
	defaultPartSize          = 5 * 1024 * 1024 // 5MB
	defaultConcurrentUploads = 5
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// UploadConfig holds upload configuration
type UploadConfig struct {
	PartSize        int64
	ConcurrentParts int
}

// Type represents the output type
type Type string

const (
	// FileSystem represents local filesystem output
	FileSystem Type = "filesystem"
	// S3 represents S3 bucket output
	S3 Type = "s3"
)

// ParseType validates an output type name
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case FileSystem, S3:
		return t, nil
	case "":
		return FileSystem, nil
	default:
		return "", fmt.Errorf("unsupported output type: %s", s)
	}
}

// Config holds output configuration
type Config struct {
	Type      Type
	OutputDir string
	S3Bucket  string
	Retry     *RetryConfig
	Upload    *UploadConfig
	// Session carries the credentials and bucket region used for S3 uploads
	Session client.ConfigProvider
	// Progress receives the upload progress bar; defaults to stderr
	Progress io.Writer
}

// Writer archives reports as gzipped JSON
type Writer struct {
	config   Config
	uploader s3manageriface.UploaderAPI
	now      func() time.Time
}

// NewWriter creates a new output writer with default settings
func NewWriter(config Config) (*Writer, error) {
	if config.Type == "" {
		config.Type = FileSystem
	}
	if config.Retry == nil {
		config.Retry = &RetryConfig{
			MaxRetries: defaultMaxRetries,
			RetryDelay: defaultRetryDelay,
		}
	}
	if config.Retry.MaxRetries < 1 {
		config.Retry.MaxRetries = 1
	}
	if config.Upload == nil {
		config.Upload = &UploadConfig{
			PartSize:        defaultPartSize,
			ConcurrentParts: defaultConcurrentUploads,
		}
	}
	if config.Progress == nil {
		config.Progress = os.Stderr
	}
	if config.Type == FileSystem && config.OutputDir == "" {
		config.OutputDir = "output"
	}

	w := &Writer{config: config, now: time.Now}
	switch config.Type {
	case FileSystem:
	case S3:
		if config.S3Bucket == "" {
			return nil, fmt.Errorf("S3 bucket not specified")
		}
		if config.Session == nil {
			return nil, fmt.Errorf("S3 output requires an AWS session")
		}
		w.uploader = s3manager.NewUploader(config.Session, func(u *s3manager.Uploader) {
			u.PartSize = config.Upload.PartSize
			u.Concurrency = config.Upload.ConcurrentParts
		})
	default:
		return nil, fmt.Errorf("unsupported output type: %s", config.Type)
	}
	return w, nil
}

// accountDir extracts just the numeric account ID from a potentially compound ID
func accountDir(accountID string) string {
	parts := strings.Split(accountID, "-")
	if id := strings.TrimSpace(parts[0]); id != "" {
		return id
	}
	return "unknown"
}

// filePath returns the archive location:
// filesystem: <dir>/YYYY/MM/DD/<accountId>/HH-MM-SS-0700.json.gz
// s3: YYYY/MM/DD/<accountId>/HH-MM-SS-0700.json.gz
func (w *Writer) filePath(accountID string, t time.Time) string {
	fileName := t.Format("15-04-05-0700") + ".json.gz"
	datePath := t.Format("2006/01/02")

	if w.config.Type == FileSystem {
		return filepath.Join(w.config.OutputDir, filepath.FromSlash(datePath), accountDir(accountID), fileName)
	}
	// S3 keys always use forward slashes
	return path.Join(datePath, accountDir(accountID), fileName)
}

// compressData compresses the input data using gzip
func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to gzip writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Write archives the report and returns the file path or S3 key written
func (w *Writer) Write(ctx context.Context, report *inventory.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	compressed, err := compressData(data)
	if err != nil {
		return "", fmt.Errorf("failed to compress report: %w", err)
	}

	stamp := report.CompletedAt
	if stamp.IsZero() {
		stamp = w.now()
	}
	location := w.filePath(report.AccountID, stamp)

	switch w.config.Type {
	case FileSystem:
		err = w.writeToFileSystem(location, compressed)
	case S3:
		err = w.writeToS3WithRetry(ctx, location, compressed)
	default:
		err = fmt.Errorf("unsupported output type: %s", w.config.Type)
	}
	if err != nil {
		return "", err
	}

	logging.Info("Report archived", map[string]interface{}{
		"output": string(w.config.Type),
		"path":   location,
		"bytes":  len(compressed),
	})
	return location, nil
}

// writeToFileSystem writes compressed data to the local filesystem
func (w *Writer) writeToFileSystem(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// writeToS3WithRetry writes data to an S3 bucket with retry logic
func (w *Writer) writeToS3WithRetry(ctx context.Context, key string, data []byte) error {
	var lastErr error
	for attempt := 0; attempt < w.config.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Warn("Retrying S3 upload", map[string]interface{}{
				"attempt": attempt + 1,
				"max":     w.config.Retry.MaxRetries,
				"error":   lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return fmt.Errorf("S3 upload cancelled: %w", ctx.Err())
			case <-time.After(w.config.Retry.RetryDelay):
			}
		}

		if err := w.writeToS3(ctx, key, data); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to upload to S3 after %d attempts: %w",
		w.config.Retry.MaxRetries, lastErr)
}

// writeToS3 writes data to an S3 bucket with progress tracking
func (w *Writer) writeToS3(ctx context.Context, key string, data []byte) error {
	reader := &progressReader{
		reader: bytes.NewReader(data),
		bar: progressbar.NewOptions64(
			int64(len(data)),
			progressbar.OptionSetWriter(w.config.Progress),
			progressbar.OptionSetDescription("Uploading to S3..."),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(15),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(w.config.Progress)
			}),
		),
	}

	_, err := w.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:               aws.String(w.config.S3Bucket),
		Key:                  aws.String(key),
		Body:                 reader,
		ContentType:          aws.String("application/json"),
		ContentEncoding:      aws.String("gzip"),
		ServerSideEncryption: aws.String("aws:kms"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// progressReader wraps an io.Reader to track progress
type progressReader struct {
	reader io.Reader
	bar    *progressbar.ProgressBar
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if barErr := r.bar.Add(n); barErr != nil {
		logging.Debug("Error updating progress bar", map[string]interface{}{"error": barErr.Error()})
	}
	return n, err
}
