package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via PLAYMINT_RPC_URL or --rpc flag
var operatorToken = os.Getenv("PLAYMINT_OPERATOR_TOKEN")

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	client := newClient(rpcEndpoint, operatorToken)
	rest := args[1:]
	switch args[0] {
	case "keygen":
		return runKeygen(rest, stdout, stderr)
	case "address":
		return runAddress(rest, stdout, stderr)
	case "checkin":
		return runCheckin(client, rest, stdout, stderr)
	case "submit":
		return runSubmit(client, rest, stdout, stderr)
	case "claim":
		return runClaim(client, rest, stdout, stderr)
	case "register-validator":
		return runRegisterValidator(client, rest, stdout, stderr)
	case "register-beneficiary":
		return runRegisterBeneficiary(client, rest, stdout, stderr)
	case "epoch":
		return runGet(client, "/v1/epoch", stdout, stderr)
	case "policy":
		return runGet(client, "/v1/policy", stdout, stderr)
	case "beneficiary":
		return runBeneficiary(client, rest, stdout, stderr)
	case "export":
		return runExport(client, rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("PLAYMINT_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func usage() string {
	return strings.Join([]string{
		"Usage: playmint-cli [--rpc URL] <command> [flags]",
		"",
		"Keys:",
		"  keygen --keystore PATH                 create an encrypted key (PLAYMINT_KEY_PASS)",
		"  address --keystore PATH                print the key's address",
		"",
		"Validator:",
		"  checkin --keystore PATH",
		"  submit --keystore PATH --beneficiaries 1,2 --destinations ADDR,ADDR [--commission ADDR]",
		"  claim --keystore PATH",
		"  register-validator --keystore PATH [--address ADDR]",
		"",
		"Registry:",
		"  register-beneficiary --keystore PATH --name NAME --destination ADDR",
		"  beneficiary <id|name>",
		"",
		"Queries:",
		"  epoch",
		"  policy",
		"  export [--format csv|jsonl|parquet] [--since T] [--until T] [--out FILE]",
	}, "\n")
}
