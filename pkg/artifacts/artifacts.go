// Package artifacts gathers backend logs from the hosts of failed
// scenarios, packs them with the harness logs and uploads the bundle to S3.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/dustin/go-humanize"
	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/spf13/afero"
	"github.com/walle/targz"
)

// Bundler collects and ships artifacts
type Bundler struct {
	nodes    node.Driver
	conn     node.ConnectionOpts
	fs       afero.Fs
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
}

// NewBundler reads host files with nodes
func NewBundler(nodes node.Driver, conn node.ConnectionOpts) *Bundler {
	return &Bundler{nodes: nodes, conn: conn, fs: afero.NewOsFs()}
}

// NewS3Uploader returns an uploader for region. endpoint overrides the AWS
// endpoint for S3 compatible stores.
func NewS3Uploader(region, endpoint string) (s3manageriface.UploaderAPI, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %v", err)
	}
	return s3manager.NewUploader(sess), nil
}

// SetUploader makes Upload put bundles under prefix in bucket
func (b *Bundler) SetUploader(u s3manageriface.UploaderAPI, bucket, prefix string) {
	b.uploader = u
	b.bucket = bucket
	b.prefix = prefix
}

// CollectHostLogs copies logFile and its rotations from every host into
// dir/<host>/ and returns the local paths
func (b *Bundler) CollectHostLogs(ctx context.Context, dir string, hosts []node.Node, logFile string) ([]string, error) {
	stem := strings.TrimSuffix(logFile, path.Ext(logFile))
	var copied []string
	for _, n := range hosts {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		if n.LogDir == "" {
			log.Warnf("Host %s has no log directory, skipping its logs", n.Name)
			continue
		}
		files, err := b.nodes.FindFiles(n.LogDir, n, node.FindOpts{Name: stem + "*", MaxDepth: 1, Type: node.File, ConnectionOpts: b.conn})
		if err != nil {
			return copied, err
		}
		target := filepath.Join(dir, n.Name)
		if err := b.fs.MkdirAll(target, 0755); err != nil {
			return copied, err
		}
		for _, f := range files {
			content, err := b.nodes.ReadFile(f, n, b.conn)
			if err != nil {
				return copied, err
			}
			local := filepath.Join(target, path.Base(f))
			if err := afero.WriteFile(b.fs, local, content, 0644); err != nil {
				return copied, err
			}
			log.Debugf("Copied %s (%s) from %s", f, humanize.Bytes(uint64(len(content))), n.Name)
			copied = append(copied, local)
		}
	}
	return copied, nil
}

// Bundle packs dir into out as a gzipped tarball
func (b *Bundler) Bundle(dir, out string) (string, error) {
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("nothing to bundle in %s: %v", dir, err)
	}
	if err := targz.Compress(dir, out); err != nil {
		return "", fmt.Errorf("failed to bundle %s: %v", dir, err)
	}
	if fi, err := os.Stat(out); err == nil {
		log.Infof("Bundled %s into %s (%s)", dir, out, humanize.Bytes(uint64(fi.Size())))
	}
	return out, nil
}

// Upload puts file into the configured bucket and returns its location
func (b *Bundler) Upload(ctx context.Context, file string) (string, error) {
	if b.uploader == nil {
		return "", fmt.Errorf("no uploader configured")
	}
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := path.Join(b.prefix, filepath.Base(file))
	out, err := b.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3://%s/%s: %v", file, b.bucket, key, err)
	}
	log.Infof("Uploaded %s to %s", file, out.Location)
	return out.Location, nil
}
