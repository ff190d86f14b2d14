// Command keytool seals an LLM API key read from stdin into a password
// protected file that llm.encrypted_key_path can point at.
//
//	echo "$OPENAI_API_KEY" | keytool -password "$KEY_PASSWORD" -out llm.key
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/secrets"
)

func main() {
	password := flag.String("password", os.Getenv("AUGURION_LLM_KEY_PASSWORD"), "password protecting the sealed file")
	out := flag.String("out", "llm.key", "output path")
	label := flag.String("label", "llm", "label bound to the ciphertext")
	flag.Parse()

	if *password == "" {
		fatal("a -password (or AUGURION_LLM_KEY_PASSWORD) is required")
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fatal("reading key from stdin: %v", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		fatal("empty key on stdin")
	}

	data, err := secrets.Seal(key, *password, *label)
	if err != nil {
		fatal("%v", err)
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		fatal("writing %s: %v", *out, err)
	}
	fmt.Fprintf(os.Stderr, "sealed key written to %s\n", *out)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "keytool: "+format+"\n", args...)
	os.Exit(1)
}
