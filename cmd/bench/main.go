package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/pedigree/internal/platform"
	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/engine"
	"github.com/aretw0/pedigree/pkg/graph"
)

func main() {
	generations := flag.Int("generations", 50, "Number of generations in the synthetic pedigree")
	saves := flag.Int("saves", 20, "Number of save/load rounds per adapter")
	keep := flag.Bool("keep", false, "Keep the benchmark directory after running")
	snapshots := flag.Bool("snapshots", false, "Render an SVG on every save")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "pedigree_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	ped := generatePED(*generations)
	fmt.Printf("Synthetic pedigree: %d generations, %d lines\n", *generations, strings.Count(ped, "\n"))

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	targets := []struct {
		name string
		uri  string
		opts []platform.Option
	}{
		{"fs (gitless)", filepath.Join(benchDir, "gitless"), []platform.Option{platform.WithAutoInit(true), platform.WithVersioning(false)}},
		{"fs (git)", filepath.Join(benchDir, "git"), []platform.Option{platform.WithAutoInit(true), platform.WithVersioning(true)}},
		{"sqlite", filepath.Join(benchDir, "bench.db"), []platform.Option{platform.WithAdapter(platform.AdapterSQLite)}},
		{"memory", "", []platform.Option{platform.WithAdapter(platform.AdapterMemory)}},
	}

	fmt.Printf("--------------------------------------------------\n")
	for _, t := range targets {
		opts := append([]platform.Option{
			platform.WithLogger(logger),
			platform.WithSnapshots(*snapshots),
		}, t.opts...)

		saveTime, loadTime, err := run(t.uri, ped, *saves, opts)
		if err != nil {
			fmt.Printf("%-14s failed: %v\n", t.name, err)
			continue
		}
		fmt.Printf("%-14s save avg %-12v load avg %v\n", t.name, saveTime, loadTime)
	}
	fmt.Printf("--------------------------------------------------\n")
}

// run imports the pedigree, then alternates edits, saves and reloads.
func run(uri, ped string, rounds int, opts []platform.Option) (time.Duration, time.Duration, error) {
	s, err := platform.New(uri, opts...)
	if err != nil {
		return 0, 0, err
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Engine.Import(ctx, ped, graph.FormatPED, nil, engine.LoadOptions{}); err != nil {
		return 0, 0, err
	}

	var saveTotal, loadTotal time.Duration
	for i := 0; i < rounds; i++ {
		s.View.Set("round", i)

		start := time.Now()
		if err := s.Engine.SaveAndWait(core.WithChangeReason(ctx, fmt.Sprintf("bench round %d", i))); err != nil {
			return 0, 0, err
		}
		saveTotal += time.Since(start)

		start = time.Now()
		if err := s.Engine.Load(ctx); err != nil {
			return 0, 0, err
		}
		loadTotal += time.Since(start)
	}
	return saveTotal / time.Duration(rounds), loadTotal / time.Duration(rounds), nil
}

// generatePED builds a single line of descent: every generation has one
// child who marries a founder.
func generatePED(generations int) string {
	var b strings.Builder
	b.WriteString("F1 g0 0 0 1 1\n")
	b.WriteString("F1 s0 0 0 2 1\n")
	father, mother := "g0", "s0"
	for i := 1; i <= generations; i++ {
		child := fmt.Sprintf("g%d", i)
		spouse := fmt.Sprintf("s%d", i)
		sex, spouseSex := "1", "2"
		if i%2 == 0 {
			sex, spouseSex = "2", "1"
		}
		affected := "1"
		if i%7 == 0 {
			affected = "2"
		}
		fmt.Fprintf(&b, "F1 %s %s %s %s %s\n", child, father, mother, sex, affected)
		fmt.Fprintf(&b, "F1 %s 0 0 %s 1\n", spouse, spouseSex)
		if sex == "1" {
			father, mother = child, spouse
		} else {
			father, mother = spouse, child
		}
	}
	return b.String()
}
