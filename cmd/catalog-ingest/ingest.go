package main

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"slices"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/larek/internal/domain/product"
	"github.com/xenking/larek/internal/wire"
)

const (
	bloomMinCapacity = 1024
	bloomFPR         = 0.001
	progressEvery    = 100_000
	maxLineSize      = 1 << 20
	lookupChunk      = 1000
)

// fileBatch holds the valid products of one dump in file order.
type fileBatch struct {
	path     string
	products []product.Product
	rejected int

	// filter holds every id of the file. repeated lists ids the filter
	// already reported while it was built: true in-file repeats plus false
	// positives.
	filter   *bloom.BloomFilter
	repeated map[string]struct{}
}

// stats summarizes an ingest run.
type stats struct {
	valid      int
	rejected   int
	duplicates int
	// confirmed counts the ids that had to be checked against the exact set.
	confirmed int
}

// readDumps parses every dump concurrently. Invalid lines are logged and
// skipped.
func readDumps(ctx context.Context, files []string) ([]fileBatch, error) {
	batches := make([]fileBatch, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			b, err := readDump(ctx, f)
			if err != nil {
				return errors.Wrapf(err, "read dump %d", i+1)
			}
			batches[i] = b
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

func readDump(ctx context.Context, path string) (fileBatch, error) {
	b := fileBatch{path: path}
	line := 0

	err := streamGzFile(ctx, path, func(data []byte) {
		line++
		if len(bytes.TrimSpace(data)) == 0 {
			return
		}
		p, err := wire.DecodeProduct(jx.DecodeBytes(data))
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			b.rejected++
			slog.Warn("skipping product",
				slog.String("file", path),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			return
		}
		b.products = append(b.products, p)
		if len(b.products)%progressEvery == 0 {
			slog.Info("read progress", slog.String("file", path), slog.Int("products", len(b.products)))
		}
	})
	if err != nil {
		return fileBatch{}, err
	}

	b.filter, b.repeated = buildFilter(b.products)

	slog.Info("dump read",
		slog.String("file", path),
		slog.Int("products", len(b.products)),
		slog.Int("rejected", b.rejected),
		slog.Int("repeated", len(b.repeated)),
	)
	return b, nil
}

func buildFilter(items []product.Product) (*bloom.BloomFilter, map[string]struct{}) {
	filter := bloom.NewWithEstimates(uint(max(len(items), bloomMinCapacity)), bloomFPR)
	repeated := make(map[string]struct{})
	for _, p := range items {
		if filter.TestOrAddString(p.ID) {
			repeated[p.ID] = struct{}{}
		}
	}
	return filter, repeated
}

// suspect reports whether id may occur more than once across the batches.
// A false result is definite.
func suspect(batches []fileBatch, idx int, id string) bool {
	if _, ok := batches[idx].repeated[id]; ok {
		return true
	}
	for j, b := range batches {
		if j != idx && b.filter.TestString(id) {
			return true
		}
	}
	return false
}

// dedupe keeps the first occurrence of every product id, in file order and
// then line order. Only ids the per-file filters flag as possible repeats are
// tracked in the exact set.
func dedupe(batches []fileBatch) ([]product.Product, stats) {
	var st stats
	total := 0
	for _, b := range batches {
		total += len(b.products)
		st.rejected += b.rejected
	}

	seen := make(map[string]struct{})
	out := make([]product.Product, 0, total)

	for i, b := range batches {
		for _, p := range b.products {
			if !suspect(batches, i, p.ID) {
				out = append(out, p)
				continue
			}
			if _, dup := seen[p.ID]; dup {
				st.duplicates++
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}

	st.valid = len(out)
	st.confirmed = len(seen)
	return out, st
}

// catalogWriter stores products and reports which ids are already stored.
type catalogWriter interface {
	product.Writer
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// writeProducts stores items so the catalog lists them in dump order. New ids
// are inserted one by one in order since insertion fixes their position.
// Updates of stored ids keep their position and run with at most workers
// concurrent writes.
func writeProducts(ctx context.Context, w catalogWriter, items []product.Product, workers int) error {
	stored, err := storedIDs(ctx, w, items)
	if err != nil {
		return err
	}

	var updates []product.Product
	inserted := 0
	for _, p := range items {
		if _, ok := stored[p.ID]; ok {
			updates = append(updates, p)
			continue
		}
		if err := w.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		inserted++
	}
	slog.Info("inserted new products", slog.Int("count", inserted))

	slog.Info("updating stored products", slog.Int("count", len(updates)), slog.Int("workers", workers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, p := range updates {
		g.Go(func() error {
			if err := w.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}
			return nil
		})
	}
	return g.Wait()
}

func storedIDs(ctx context.Context, w catalogWriter, items []product.Product) (map[string]struct{}, error) {
	ids := make([]string, len(items))
	for i, p := range items {
		ids[i] = p.ID
	}

	stored := make(map[string]struct{})
	for chunk := range slices.Chunk(ids, lookupChunk) {
		found, err := w.GetByIDs(ctx, chunk)
		if err != nil {
			return nil, errors.Wrap(err, "look up stored products")
		}
		for _, p := range found {
			stored[p.ID] = struct{}{}
		}
	}
	return stored, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line. The
// slice passed to fn is only valid during the call.
func streamGzFile(ctx context.Context, path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Bytes())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
