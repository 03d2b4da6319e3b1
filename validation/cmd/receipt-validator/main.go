package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/StabilityNexus/hammerhouse/validation"
)

func main() {
	var (
		receiptPath   = flag.String("receipt", "", "Path to base64 COSE receipt file (required)")
		publicKeyPath = flag.String("public-key", "", "Path to house public key PEM file (required)")
		outputFormat  = flag.String("format", "text", "Output format: text or json")
		help          = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help || *receiptPath == "" || *publicKeyPath == "" {
		showUsage()
		if *receiptPath == "" || *publicKeyPath == "" {
			os.Exit(2)
		}
		os.Exit(0)
	}

	receiptB64, err := os.ReadFile(*receiptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading receipt: %v\n", err)
		os.Exit(2)
	}
	publicKeyPEM, err := os.ReadFile(*publicKeyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading public key: %v\n", err)
		os.Exit(2)
	}

	receipt, err := validation.VerifyReceipt(string(publicKeyPEM), strings.TrimSpace(string(receiptB64)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "VALIDATION: FAILED: %v\n", err)
		os.Exit(1)
	}

	if *outputFormat == "json" {
		data, err := json.MarshalIndent(receipt, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
			os.Exit(2)
		}
		fmt.Println(string(data))
	} else {
		fmt.Println("Settlement Receipt Validator")
		fmt.Println("============================")
		fmt.Printf("  Auction:    %d (%s)\n", receipt.AuctionID, receipt.Kind)
		fmt.Printf("  Event:      %s\n", receipt.Event)
		if receipt.Winner != "" {
			fmt.Printf("  Winner:     %s\n", receipt.Winner)
		}
		if receipt.PricePaid != "" {
			fmt.Printf("  Price paid: %s\n", receipt.PricePaid)
		}
		if receipt.Gross != "" {
			fmt.Printf("  Gross:      %s\n", receipt.Gross)
			fmt.Printf("  Net:        %s\n", receipt.Net)
			fmt.Printf("  Fee:        %s\n", receipt.FeePaid)
		}
		fmt.Printf("  Timestamp:  %d\n", receipt.Timestamp)
		fmt.Println("VALIDATION: PASSED")
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Settlement Receipt Validator")
	fmt.Println("")
	fmt.Println("Verifies COSE-signed auction settlement receipts offline.")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  receipt-validator --receipt <path> --public-key <pem> [options]")
	fmt.Println("")
	fmt.Println("Required Flags:")
	fmt.Println("  --receipt <path>      Path to base64 COSE receipt file")
	fmt.Println("  --public-key <path>   Path to house public key PEM file")
	fmt.Println("")
	fmt.Println("Optional Flags:")
	fmt.Println("  --format <text|json>  Output format (default: text)")
	fmt.Println("  --help                Show this help message")
	fmt.Println("")
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Receipt verified")
	fmt.Println("  1 - Verification failed")
	fmt.Println("  2 - Invalid input or runtime error")
}
