package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

type bucketCreator interface {
	EnsureBucket(ctx context.Context, bucket string) error
}

func statusCommand(c *cli.Context) error {
	id, err := documentArg(c)
	if err != nil {
		return err
	}
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	l, err := env.Ledger(c.Context)
	if err != nil {
		return err
	}
	rec, err := l.Get(c.Context, id)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func redriveCommand(c *cli.Context) error {
	id, err := documentArg(c)
	if err != nil {
		return err
	}
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	l, err := env.Ledger(c.Context)
	if err != nil {
		return err
	}
	rec, err := l.Redrive(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Printf("Document %s is %s again; the indexer will pick it up.\n", rec.DocumentID, rec.Status)
	return nil
}

func indexNowCommand(c *cli.Context) error {
	id, err := documentArg(c)
	if err != nil {
		return err
	}
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	indexer, err := env.ExtractionIndexer(c.Context)
	if err != nil {
		return err
	}
	n, err := indexer.IndexDocument(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d chunks for document %s.\n", n, id)
	return nil
}

func reapCommand(c *cli.Context) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	reaper, err := env.StaleReaper(c.Context)
	if err != nil {
		return err
	}
	report, err := reaper.Reap(c.Context)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return cli.Exit("expected a query", 2)
	}
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	embedder, err := env.Embedder(c.Context)
	if err != nil {
		return err
	}
	index, err := env.Index(c.Context)
	if err != nil {
		return err
	}
	vector, err := embedder.EmbedQuery(c.Context, query)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := index.Search(c.Context, vector, c.Int("limit"))
	if err != nil {
		return err
	}
	for _, h := range hits {
		fmt.Printf("%.4f  %s  page %d\n    %s\n", h.Distance, h.ChunkID, h.PageNumber, preview(h.Content, 160))
	}
	return nil
}

func initCommand(c *cli.Context) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.Index(c.Context); err != nil {
		return err
	}
	fmt.Println("Vector index class is ready.")

	store, err := env.ObjectStore(c.Context)
	if err != nil {
		return err
	}
	creator, ok := store.(bucketCreator)
	if !ok {
		return nil
	}
	for _, bucket := range []string{env.Config.Storage.UploadBucket, env.Config.Storage.OCROutputBucket} {
		if bucket == "" {
			continue
		}
		if err := creator.EnsureBucket(c.Context, bucket); err != nil {
			return err
		}
		fmt.Printf("Bucket %s is ready.\n", bucket)
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
