// Command ragmemctl is a small operator CLI for inspecting and exercising
// ragmemory stores and snapshots offline, without standing up a host
// process.
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"ragmemory"
	"ragmemory/internal/similarity"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "inspect":
		runInspect(os.Args[2:])
	case "search":
		runSearch(os.Args[2:])
	case "vecstore-stat":
		runVecstoreStat(os.Args[2:])
	default:
		fmt.Printf("unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: ragmemctl <command> [args]")
	fmt.Println("commands:")
	fmt.Println("  inspect <snapshot.json> <dimension>")
	fmt.Println("  search <snapshot.json> <dimension> <query-csv> [--k N] [--decay F]")
	fmt.Println("  vecstore-stat <path> <dimension> <capacity>")
}

func runInspect(args []string) {
	if len(args) < 2 {
		fmt.Println("error: inspect requires <snapshot.json> <dimension>")
		os.Exit(1)
	}
	path := args[0]
	dim, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("error: invalid dimension %q: %v\n", args[1], err)
		os.Exit(1)
	}

	e := ragmemory.New(dim, 0)
	n, err := e.Load(path)
	if err != nil {
		fmt.Printf("error: load %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("snapshot: %s\n", path)
	fmt.Printf("dimension: %d\n", dim)
	fmt.Printf("entries loaded: %d\n", n)

	var oldest, newest float64
	first := true
	for _, id := range e.GetIDs() {
		entry, ok := e.Get(id)
		if !ok {
			continue
		}
		if first || entry.Timestamp < oldest {
			oldest = entry.Timestamp
		}
		if first || entry.Timestamp > newest {
			newest = entry.Timestamp
		}
		first = false
	}
	if !first {
		fmt.Printf("timestamp range: %.0f .. %.0f\n", oldest, newest)
	}
}

func runSearch(args []string) {
	if len(args) < 3 {
		fmt.Println("error: search requires <snapshot.json> <dimension> <query-csv>")
		os.Exit(1)
	}
	path, dimStr, queryCSV := args[0], args[1], args[2]

	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		fmt.Printf("error: invalid dimension %q: %v\n", dimStr, err)
		os.Exit(1)
	}

	k := 5
	decay := 0.0
	for i := 3; i < len(args); i++ {
		switch args[i] {
		case "--k":
			if i+1 >= len(args) {
				fmt.Println("error: --k requires a value")
				os.Exit(1)
			}
			k, err = strconv.Atoi(args[i+1])
			if err != nil {
				fmt.Printf("error: invalid --k %q: %v\n", args[i+1], err)
				os.Exit(1)
			}
			i++
		case "--decay":
			if i+1 >= len(args) {
				fmt.Println("error: --decay requires a value")
				os.Exit(1)
			}
			decay, err = strconv.ParseFloat(args[i+1], 64)
			if err != nil {
				fmt.Printf("error: invalid --decay %q: %v\n", args[i+1], err)
				os.Exit(1)
			}
			i++
		default:
			fmt.Printf("unknown argument: %s\n", args[i])
			os.Exit(1)
		}
	}

	query, err := parseVector(queryCSV, dim)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	e := ragmemory.New(dim, 0)
	if _, err := e.Load(path); err != nil {
		fmt.Printf("error: load %s: %v\n", path, err)
		os.Exit(1)
	}

	results, err := e.Search(query, k, decay)
	if err != nil {
		fmt.Printf("error: search: %v\n", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return
	}

	fmt.Printf("%-20s  %-10s  %s\n", "id", "score", "text")
	fmt.Println(strings.Repeat("-", 60))
	for _, r := range results {
		text := r.Text
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		fmt.Printf("%-20s  %-10.4f  %s\n", r.ID, r.Score, text)
	}
	fmt.Printf("\n%d result(s)\n", len(results))
	fmt.Printf("kernel: %s\n", similarity.Capability())
}

func runVecstoreStat(args []string) {
	if len(args) < 3 {
		fmt.Println("error: vecstore-stat requires <path> <dimension> <capacity>")
		os.Exit(1)
	}
	path := args[0]
	dim, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("error: invalid dimension %q: %v\n", args[1], err)
		os.Exit(1)
	}
	capacity, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		fmt.Printf("error: invalid capacity %q: %v\n", args[2], err)
		os.Exit(1)
	}

	e, err := ragmemory.Open(dim, 0, path, capacity)
	if err != nil {
		fmt.Printf("error: open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer e.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("error: read %s: %v\n", path, err)
		os.Exit(1)
	}
	if len(data) < 64 {
		fmt.Println("error: file too small to hold a header")
		os.Exit(1)
	}

	magic := string(data[0:4])
	version := binary.LittleEndian.Uint32(data[4:8])
	storedDim := binary.LittleEndian.Uint32(data[8:12])
	count := binary.LittleEndian.Uint64(data[12:20])

	fmt.Printf("path: %s\n", path)
	fmt.Printf("magic: %s\n", magic)
	fmt.Printf("version: %d\n", version)
	fmt.Printf("dimension: %d\n", storedDim)
	fmt.Printf("count: %d\n", count)
	fmt.Printf("file size: %d bytes\n", len(data))
}

func parseVector(csv string, dim int) ([]float32, error) {
	parts := strings.Split(csv, ",")
	if len(parts) != dim {
		return nil, fmt.Errorf("query has %d components, want %d", len(parts), dim)
	}
	vec := make([]float32, dim)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid component %q: %w", p, err)
		}
		vec[i] = float32(v)
	}
	return vec, nil
}
