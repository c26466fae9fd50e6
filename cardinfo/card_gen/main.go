package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/alovak/simple-banking/internal/cardgen"
)

var (
	flagPrefix  = flag.Int64("prefix", 400000, "bank identification number")
	flagMin     = flag.Int64("min", 100000000, "smallest account identifier")
	flagMax     = flag.Int64("max", 999999999, "largest account identifier")
	flagCount   = flag.Int("count", 1, "how many numbers to print")
	flagVerbose = flag.Bool("verbose", false, "print full number (otherwise masked)")
	flagCheck   = flag.String("check", "", "validate this number instead of generating")
)

func main() {
	flag.Parse()

	if *flagCheck != "" {
		report, ok := checkReport(*flagCheck)
		fmt.Println(report)
		if !ok {
			os.Exit(2)
		}
		return
	}

	if *flagCount <= 0 {
		fail("-count must be positive")
	}
	for i := 0; i < *flagCount; i++ {
		pan := must1(cardgen.Generate(*flagPrefix, *flagMin, *flagMax))
		if *flagVerbose {
			fmt.Println(pan)
		} else {
			fmt.Println(cardgen.MaskPAN(pan))
		}
	}
}

// checkReport describes whether number passes the checksum and, if not,
// which check digit it should have had.
func checkReport(number string) (string, bool) {
	n := cardgen.NormalizePAN(number)
	if cardgen.Validate(n) {
		return "VALID " + cardgen.MaskPAN(n), true
	}
	if len(n) < 2 || !cardgen.IsDigits(n) {
		return "INVALID: not a card number", false
	}
	cd, ok := cardgen.CheckDigit(n[:len(n)-1])
	if !ok {
		return "INVALID", false
	}
	return fmt.Sprintf("INVALID: expected check digit %c", cd), false
}

func must1[T any](v T, err error) T {
	if err != nil {
		fail("%v", err)
	}
	return v
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
