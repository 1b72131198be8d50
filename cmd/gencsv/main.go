// Copyright 2026 The Granula Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command gencsv writes a synthetic CSV file, for exercising the chunk
// planner at scale without a real upload.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"
)

var firstNames = []string{"John", "Jane", "Alex", "Olivia", "Liam", "Emma", "Noah", "Ava", "Mason", "Sophia"}
var lastNames = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis"}
var domains = []string{"example.com", "mail.com", "test.org", "sample.net"}

func main() {
	out := flag.String("out", "sample.csv", "output CSV file path")
	rows := flag.Int("rows", 1000, "number of data rows to generate")
	noHeader := flag.Bool("no-header", false, "omit the header row")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	if *rows < 0 {
		fmt.Fprintln(os.Stderr, "gencsv: -rows must be >= 0")
		os.Exit(2)
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gencsv:", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rnd := rand.New(rand.NewSource(*seed))

	if !*noHeader {
		if err := w.Write([]string{"id", "name", "email", "amount", "date"}); err != nil {
			fmt.Fprintln(os.Stderr, "gencsv:", err)
			os.Exit(1)
		}
	}

	start := time.Now().AddDate(-10, 0, 0)
	for i := 1; i <= *rows; i++ {
		name := randName(rnd)
		row := []string{
			strconv.Itoa(i),
			name,
			randEmail(rnd, name),
			strconv.FormatFloat(randAmount(rnd), 'f', 2, 64),
			randDate(rnd, start),
		}
		if err := w.Write(row); err != nil {
			fmt.Fprintln(os.Stderr, "gencsv:", err)
			os.Exit(1)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintln(os.Stderr, "gencsv:", err)
		os.Exit(1)
	}

	fmt.Printf("CSV generated: %s (%d rows)\n", *out, *rows)
}

func randName(rnd *rand.Rand) string {
	return firstNames[rnd.Intn(len(firstNames))] + " " + lastNames[rnd.Intn(len(lastNames))]
}

func randEmail(rnd *rand.Rand, name string) string {
	user := ""
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			user += string(r)
		}
	}
	return fmt.Sprintf("%s%d@%s", user, rnd.Intn(9999)+1, domains[rnd.Intn(len(domains))])
}

func randAmount(rnd *rand.Rand) float64 {
	v := 1.0 + rnd.Float64()*9999.0
	return float64(int(v*100)) / 100
}

func randDate(rnd *rand.Rand, start time.Time) string {
	days := rnd.Intn(3650)
	return start.AddDate(0, 0, days).Format("2006-01-02")
}
