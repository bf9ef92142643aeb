// cmd/tools/webhook-signer/main.go
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"driving-school-api/internal/common/validation"
	"driving-school-api/internal/payments/signature"
	processwebhook "driving-school-api/internal/services/payment/process-webhook"
)

type payloadFlags struct {
	secret      *string
	reference   *string
	status      *string
	transaction *string
	raw         *string
}

func bindPayloadFlags(fs *flag.FlagSet) payloadFlags {
	return payloadFlags{
		secret:      fs.String("secret", os.Getenv("WEBHOOK_SECRET"), "Shared webhook secret (default $WEBHOOK_SECRET)"),
		reference:   fs.String("reference", "", "Payment reference (e.g., PAY-1718000000000-9f86d081884c7d65)"),
		status:      fs.String("status", "success", "Payment status (success, failed, pending)"),
		transaction: fs.String("transaction", "", "Provider transaction id"),
		raw:         fs.String("body", "", "Raw JSON body; overrides reference/status/transaction"),
	}
}

// body returns the exact bytes that get signed.
func (p payloadFlags) body() ([]byte, error) {
	if *p.raw != "" {
		return []byte(*p.raw), nil
	}
	if *p.reference == "" {
		return nil, fmt.Errorf("reference is required")
	}
	return json.Marshal(processwebhook.Payload{
		Reference:     *p.reference,
		Status:        *p.status,
		TransactionID: *p.transaction,
	})
}

func main() {
	signCmd := flag.NewFlagSet("sign", flag.ExitOnError)
	sendCmd := flag.NewFlagSet("send", flag.ExitOnError)

	signFlags := bindPayloadFlags(signCmd)
	sendFlags := bindPayloadFlags(sendCmd)
	url := sendCmd.String("url", "http://localhost:3000/payment-webhook", "Webhook endpoint")
	timeout := sendCmd.Duration("timeout", 10*time.Second, "Request timeout")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sign":
		signCmd.Parse(os.Args[2:])
		body, sig := mustSign(signCmd, signFlags)
		fmt.Printf("Body:      %s\n", body)
		fmt.Printf("%s: %s\n", signature.Header, sig)

	case "send":
		sendCmd.Parse(os.Args[2:])
		body, sig := mustSign(sendCmd, sendFlags)

		req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Error building request: %v\n", err)
			os.Exit(1)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(signature.Header, sig)

		resp, err := (&http.Client{Timeout: *timeout}).Do(req)
		if err != nil {
			fmt.Printf("Error sending webhook: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		fmt.Printf("Status: %s\n", resp.Status)
		fmt.Printf("Body:   %s\n", respBody)
		if resp.StatusCode >= 300 {
			os.Exit(2)
		}

	default:
		help()
		os.Exit(1)
	}
}

func mustSign(fs *flag.FlagSet, p payloadFlags) ([]byte, string) {
	if *p.secret == "" {
		fmt.Println("Error: -secret or WEBHOOK_SECRET is required.")
		fs.Usage()
		os.Exit(1)
	}
	body, err := p.body()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		fs.Usage()
		os.Exit(1)
	}
	if result := validation.WebhookSchema().Validate(body); !result.Valid {
		for _, e := range result.Errors {
			fmt.Printf("Warning: %s %s\n", e.Field, e.Message)
		}
	}
	return body, signature.NewVerifier(*p.secret).Sign(body)
}

func help() {
	fmt.Print(`
Usage: webhook-signer <command> [flags]

Commands:
  sign    Print a webhook body and its signature header
  send    Sign a webhook body and POST it to the API

Examples:
  webhook-signer sign -reference PAY-1718000000000-9f86d081884c7d65 -status success -transaction TX123
  webhook-signer send -url http://localhost:3000/payment-webhook -reference PAY-1718000000000-9f86d081884c7d65
  webhook-signer send -body '{"reference":"PAY-1-ab","status":"failed"}'
`)
}
