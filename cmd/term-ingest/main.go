// Command term-ingest distills large gzipped search term dumps into a clean
// deduplicated term list suitable for embedding as a discovery term set.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
)

const (
	bloomCapacity = 50_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minTermLen    = 3
	maxTermLen    = 64
)

func main() {
	var output string

	flag.StringVar(&output, "output", "terms.txt", "path of the deduplicated term file to write")
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 {
		slog.Error("usage: term-ingest [-output file] dump1.gz [dump2.gz ...]")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, inputs, output); err != nil {
		slog.Error("term ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("term ingest completed successfully")
}

func run(ctx context.Context, inputs []string, output string) error {
	out, err := os.Create(output)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	defer func() { _ = out.Close() }()

	w := bufio.NewWriter(out)
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	var total, kept int64
	for _, input := range inputs {
		n, k, err := ingestFile(ctx, input, filter, w)
		if err != nil {
			return errors.Wrapf(err, "ingest %s", input)
		}
		total += n
		kept += k
	}

	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "flush output")
	}

	slog.Info("done", slog.Int64("lines", total), slog.Int64("unique_terms", kept))
	return nil
}

// ingestFile streams one gzipped dump through the bloom filter, appending
// unseen terms to w. The filter's false positives drop a term at worst, they
// never duplicate one.
func ingestFile(ctx context.Context, path string, filter *bloom.BloomFilter, w *bufio.Writer) (total, kept int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, 0, errors.Wrap(err, "gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if total%progressEvery == 0 && total > 0 {
			slog.Info("progress", slog.String("file", path), slog.Int64("lines", total), slog.Int64("kept", kept))
			select {
			case <-ctx.Done():
				return total, kept, ctx.Err()
			default:
			}
		}
		total++

		term := strings.TrimSpace(scanner.Text())
		if len(term) < minTermLen || len(term) > maxTermLen || strings.HasPrefix(term, "#") {
			continue
		}
		if filter.TestOrAddString(term) {
			continue
		}

		if _, err := w.WriteString(term + "\n"); err != nil {
			return total, kept, errors.Wrap(err, "write term")
		}
		kept++
	}
	if err := scanner.Err(); err != nil {
		return total, kept, errors.Wrap(err, "scan")
	}
	return total, kept, nil
}
