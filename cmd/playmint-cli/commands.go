package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"playmint/cmd/internal/passphrase"
	"playmint/crypto"
)

const keyPassEnv = "PLAYMINT_KEY_PASS"

var keyPass = passphrase.NewSource(keyPassEnv, "key")

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("--keystore is required")
	}
	pass, err := keyPass.Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func printJSON(stdout io.Writer, raw json.RawMessage) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		fmt.Fprintln(stdout, string(raw))
		return
	}
	fmt.Fprintln(stdout, out.String())
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	path := fs.String("keystore", "", "path of the keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*path) == "" {
		return fail(stderr, errors.New("--keystore is required"))
	}
	if _, err := os.Stat(*path); err == nil {
		return fail(stderr, fmt.Errorf("%s already exists", *path))
	}
	pass, err := keyPass.Get()
	if err != nil {
		return fail(stderr, err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fail(stderr, err)
	}
	if err := crypto.SaveToKeystore(*path, key, pass, crypto.StandardStrength); err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, key.PubKey().Address().String())
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr)
	path := fs.String("keystore", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadKey(*path)
	if err != nil {
		return fail(stderr, err)
	}
	addr := key.PubKey().Address()
	fmt.Fprintf(stdout, "%s\n%s\n", addr.String(), addr.Hex())
	return 0
}

func runCheckin(c *client, args []string, stdout, stderr io.Writer) int {
	return runSignedNoBody(c, "checkin", "/v1/checkin", args, stdout, stderr)
}

func runClaim(c *client, args []string, stdout, stderr io.Writer) int {
	return runSignedNoBody(c, "claim", "/v1/claims", args, stdout, stderr)
}

func runSignedNoBody(c *client, name, path string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr)
	keystore := fs.String("keystore", "", "validator keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadKey(*keystore)
	if err != nil {
		return fail(stderr, err)
	}
	raw, err := c.signed(key, path, nil)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, raw)
	return 0
}

func runSubmit(c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("submit", stderr)
	keystore := fs.String("keystore", "", "validator keystore file")
	ids := fs.String("beneficiaries", "", "comma separated beneficiary ids")
	dests := fs.String("destinations", "", "comma separated destinations matching --beneficiaries")
	commission := fs.String("commission", "", "commission destination echoed from the policy")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	body, err := buildSubmission(*ids, *dests, *commission)
	if err != nil {
		return fail(stderr, err)
	}
	key, err := loadKey(*keystore)
	if err != nil {
		return fail(stderr, err)
	}
	raw, err := c.signed(key, "/v1/submissions", body)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, raw)
	return 0
}

type submissionBody struct {
	Beneficiaries         []uint64         `json:"beneficiaries"`
	Destinations          []crypto.Address `json:"destinations"`
	CommissionDestination *crypto.Address  `json:"commissionDestination,omitempty"`
}

func buildSubmission(ids, dests, commission string) (submissionBody, error) {
	var body submissionBody
	for _, raw := range splitList(ids) {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return body, fmt.Errorf("invalid beneficiary id %q", raw)
		}
		body.Beneficiaries = append(body.Beneficiaries, id)
	}
	if len(body.Beneficiaries) == 0 {
		return body, errors.New("--beneficiaries is required")
	}
	for _, raw := range splitList(dests) {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return body, err
		}
		body.Destinations = append(body.Destinations, addr)
	}
	if len(body.Destinations) != len(body.Beneficiaries) {
		return body, fmt.Errorf("%d destinations for %d beneficiaries", len(body.Destinations), len(body.Beneficiaries))
	}
	if strings.TrimSpace(commission) != "" {
		addr, err := crypto.ParseAddress(commission)
		if err != nil {
			return body, err
		}
		body.CommissionDestination = &addr
	}
	return body, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func runRegisterValidator(c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("register-validator", stderr)
	keystore := fs.String("keystore", "", "caller keystore file (owner when curated)")
	address := fs.String("address", "", "validator address; defaults to the caller")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	body := map[string]string{}
	if strings.TrimSpace(*address) != "" {
		addr, err := crypto.ParseAddress(*address)
		if err != nil {
			return fail(stderr, err)
		}
		body["address"] = addr.String()
	}
	key, err := loadKey(*keystore)
	if err != nil {
		return fail(stderr, err)
	}
	raw, err := c.signed(key, "/v1/validators", body)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, raw)
	return 0
}

func runRegisterBeneficiary(c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("register-beneficiary", stderr)
	keystore := fs.String("keystore", "", "authority keystore file")
	name := fs.String("name", "", "unique beneficiary name")
	destination := fs.String("destination", "", "reward destination address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := crypto.ParseAddress(*destination)
	if err != nil {
		return fail(stderr, fmt.Errorf("--destination: %w", err))
	}
	key, err := loadKey(*keystore)
	if err != nil {
		return fail(stderr, err)
	}
	raw, err := c.signed(key, "/v1/beneficiaries", map[string]string{"name": *name, "destination": addr.String()})
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, raw)
	return 0
}

func runBeneficiary(c *client, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return fail(stderr, errors.New("usage: beneficiary <id|name>"))
	}
	path := "/v1/beneficiaries/" + url.PathEscape(args[0])
	if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
		path = "/v1/beneficiaries?name=" + url.QueryEscape(args[0])
	}
	return runGet(c, path, stdout, stderr)
}

func runGet(c *client, path string, stdout, stderr io.Writer) int {
	raw, err := c.get(path)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, raw)
	return 0
}

func runExport(c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("export", stderr)
	format := fs.String("format", "csv", "csv, jsonl or parquet")
	since := fs.String("since", "", "unix seconds or RFC3339 lower bound")
	until := fs.String("until", "", "unix seconds or RFC3339 upper bound")
	out := fs.String("out", "", "write to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	query := url.Values{}
	query.Set("format", *format)
	if *since != "" {
		query.Set("since", *since)
	}
	if *until != "" {
		query.Set("until", *until)
	}
	data, header, err := c.download("/v1/exports/mints?" + query.Encode())
	if err != nil {
		return fail(stderr, err)
	}
	if *out == "" {
		_, _ = stdout.Write(data)
		return 0
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "wrote %d bytes to %s (sha256 %s)\n", len(data), *out, header.Get("X-Content-SHA256"))
	return 0
}
