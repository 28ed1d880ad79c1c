// Inspector evaluates a single account snapshot against a firm's rule set
// and prints the result. Useful for replaying incidents from persisted
// snapshots without running the server.
//
// Usage:
//
//	inspector -firm topstep -type eval -snapshot snapshot.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/propgate/propgate/internal/engine"
	"github.com/propgate/propgate/internal/model"
	"github.com/propgate/propgate/internal/rules"
)

func main() {
	firm := flag.String("firm", "", "prop firm (apex, topstep, mff, bulenox, takeprofit)")
	accountType := flag.String("type", "eval", "account type (eval, pa, funded)")
	version := flag.String("version", "", "rule set version")
	snapshotPath := flag.String("snapshot", "", "path to an account snapshot JSON file")
	flag.Parse()

	if *firm == "" || *snapshotPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	payload, err := os.ReadFile(*snapshotPath)
	if err != nil {
		log.Fatalf("read snapshot: %v", err)
	}
	var snap model.AccountSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		log.Fatalf("parse snapshot: %v", err)
	}

	firmRules, err := rules.NewLoader(nil).Get(*firm, *accountType, *version)
	if err != nil {
		log.Fatalf("load rules: %v", err)
	}

	result := engine.New(firmRules).Evaluate(&snap)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	fmt.Println(string(out))
}
