// Package probe verifies what a job did from the outside: by scanning the
// backend logs on a host and by querying the backend metadata store.
// Probes report mismatches as results. Only failures to read are errors.
package probe

import (
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/portworx/jobharness/pkg/task"
)

// ScanOpts select what a log scan looks for
type ScanOpts struct {
	// Pattern is searched in every line
	Pattern string
	// Correlated must also be found on a matching line when set
	Correlated string
	// JobID restricts the scan to lines carrying the id as a separate token
	JobID string
	// Literal matches the patterns as plain text instead of regular expressions
	Literal bool
	// SingleFile scans only the named file and none of its rotations
	SingleFile bool
	// FirstMatchOnly stops at the first matching line
	FirstMatchOnly bool
}

// LogResult is the outcome of a log scan
type LogResult struct {
	Matched bool
	// Lines are the matching lines
	Lines []string
	// Matches are the parts of Lines that matched Pattern
	Matches []string
	// Files are the files scanned, in scan order
	Files []string
	// MatchedFile is the file the matches came from
	MatchedFile string
}

// LogProbe scans backend logs through a node driver
type LogProbe struct {
	nodes node.Driver
	conn  node.ConnectionOpts
}

// NewLogProbe returns a probe reading files with d
func NewLogProbe(d node.Driver, conn node.ConnectionOpts) *LogProbe {
	return &LogProbe{nodes: d, conn: conn}
}

func compile(pattern string, literal bool) (*regexp.Regexp, error) {
	if literal {
		pattern = regexp.QuoteMeta(pattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid log pattern %q: %v", pattern, err)
	}
	return re, nil
}

// OrderLogFiles puts the current log first followed by its rotations
// newest first. Rotation numbers compare numerically, so perf_10 is newer
// than perf_2.
func OrderLogFiles(files []string) []string {
	ordered := append([]string(nil), files...)
	if len(ordered) < 2 {
		return ordered
	}
	sort.SliceStable(ordered, func(i, j int) bool { return naturalLess(ordered[j], ordered[i]) })
	last := ordered[len(ordered)-1]
	return append([]string{last}, ordered[:len(ordered)-1]...)
}

// naturalLess compares runs of digits by value and everything else bytewise
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := leadingChunk(a), leadingChunk(b)
		a, b = a[len(ca):], b[len(cb):]
		if ca == cb {
			continue
		}
		if isDigit(ca[0]) && isDigit(cb[0]) {
			na, nb := strings.TrimLeft(ca, "0"), strings.TrimLeft(cb, "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
		}
		return ca < cb
	}
	return len(a) < len(b)
}

func leadingChunk(s string) string {
	digits := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i]
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

// logFiles returns the files of the log called logFile on n, in scan order
func (p *LogProbe) logFiles(n node.Node, logFile string, single bool) ([]string, error) {
	if n.LogDir == "" {
		return nil, &errors.ErrSetup{Resource: "log directory of " + n.Name, Cause: "host has no log directory configured"}
	}
	if single {
		return []string{path.Join(n.LogDir, logFile)}, nil
	}
	all, err := p.nodes.FindFiles(n.LogDir, n, node.FindOpts{MaxDepth: 1, Type: node.File, ConnectionOpts: p.conn})
	if err != nil {
		return nil, err
	}
	stem := strings.ToLower(strings.TrimSuffix(logFile, path.Ext(logFile)))
	var files []string
	for _, f := range all {
		if strings.Contains(strings.ToLower(path.Base(f)), stem) {
			files = append(files, f)
		}
	}
	return OrderLogFiles(files), nil
}

// decompress returns the text of a log file, unpacking .zip and .bz2
// rotations in memory
func decompress(file string, content []byte) ([]byte, error) {
	switch strings.ToLower(path.Ext(file)) {
	case ".zip":
		zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %v", file, err)
		}
		var out bytes.Buffer
		for _, f := range zr.File {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open %s in %s: %v", f.Name, file, err)
			}
			_, err = io.Copy(&out, rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to decompress %s in %s: %v", f.Name, file, err)
			}
		}
		return out.Bytes(), nil
	case ".bz2":
		out, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(content)))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %v", file, err)
		}
		return out, nil
	}
	return content, nil
}

// ScanLog searches the log called logFile on n. The current file is read
// first, then the rotations from newest to oldest. The scan stops at the
// first file that has matches.
func (p *LogProbe) ScanLog(ctx context.Context, n node.Node, logFile string, opts ScanOpts) (*LogResult, error) {
	re, err := compile(opts.Pattern, opts.Literal)
	if err != nil {
		return nil, err
	}
	var correlated *regexp.Regexp
	if opts.Correlated != "" {
		if correlated, err = compile(opts.Correlated, opts.Literal); err != nil {
			return nil, err
		}
	}
	files, err := p.logFiles(n, logFile, opts.SingleFile)
	if err != nil {
		return nil, err
	}
	log.Infof("Log files to scan on %s: %v", n.Name, files)

	result := &LogResult{}
	token := ""
	if opts.JobID != "" {
		token = " " + opts.JobID + " "
	}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := p.nodes.ReadFile(file, n, p.conn)
		if err != nil {
			return nil, err
		}
		content, err := decompress(file, raw)
		if err != nil {
			return nil, err
		}
		log.Debugf("Read %s from %s on %s", humanize.Bytes(uint64(len(content))), file, n.Name)
		result.Files = append(result.Files, file)

		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimRight(line, "\r")
			if token != "" && !strings.Contains(line, token) {
				continue
			}
			m := re.FindString(line)
			if m == "" && !re.MatchString(line) {
				continue
			}
			if correlated != nil && !correlated.MatchString(line) {
				continue
			}
			result.Lines = append(result.Lines, line)
			result.Matches = append(result.Matches, m)
			if opts.FirstMatchOnly {
				break
			}
		}
		if len(result.Lines) > 0 {
			result.Matched = true
			result.MatchedFile = file
			log.Infof("Found %d matching line(s) in %s", len(result.Lines), file)
			return result, nil
		}
	}
	log.Infof("Pattern %q not found in %s on %s", opts.Pattern, logFile, n.Name)
	return result, nil
}

// WaitForLogLine scans until a match shows up or timeout passes
func (p *LogProbe) WaitForLogLine(ctx context.Context, n node.Node, logFile string, opts ScanOpts, timeout, interval time.Duration) (*LogResult, error) {
	t := func() (interface{}, bool, error) {
		res, err := p.ScanLog(ctx, n, logFile, opts)
		if err != nil {
			if errors.Category(err) == errors.CategorySetup {
				return nil, false, err
			}
			return nil, true, err
		}
		if !res.Matched {
			return res, true, fmt.Errorf("pattern %q not yet in %s on %s", opts.Pattern, logFile, n.Name)
		}
		return res, false, nil
	}
	out, err := task.DoRetryWithContext(ctx, t, task.Opts{Timeout: timeout, TimeBeforeRetry: interval})
	if err != nil {
		return nil, err
	}
	return out.(*LogResult), nil
}
