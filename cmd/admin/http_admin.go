package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"logisim.dev/internal/protocol"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/status"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

// commandCmd posts one construction command, e.g.
//
//	admin command -op CONNECT -machine 3 -target 4 -item ore
func commandCmd(args []string) {
	fs := flag.NewFlagSet("command", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	op := fs.String("op", "", "CREATE|ASSIGN_RECIPE|CONNECT|DESTROY|SET_DISABLED|INJECT")
	machine := fs.Uint("machine", 0, "machine id")
	target := fs.Uint("target", 0, "target machine id (CONNECT)")
	template := fs.String("template", "", "machine template (CREATE)")
	recipe := fs.String("recipe", "", "recipe id (CREATE, ASSIGN_RECIPE)")
	item := fs.String("item", "", "item id (CONNECT, INJECT)")
	qty := fs.Float64("quantity", 0, "quantity (INJECT)")
	disabled := fs.Bool("disabled", false, "disabled flag (SET_DISABLED)")
	_ = fs.Parse(args)

	cmd := protocol.CommandMsg{
		Type:            protocol.TypeCommand,
		ProtocolVersion: protocol.Version,
		ReqID:           fmt.Sprintf("admin-%d", time.Now().UnixNano()),
		Op:              strings.ToUpper(strings.TrimSpace(*op)),
		Machine:         uint32(*machine),
		Target:          uint32(*target),
		Template:        *template,
		Recipe:          *recipe,
		Item:            *item,
		Quantity:        *qty,
		Disabled:        *disabled,
	}
	body, _ := json.Marshal(cmd)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/commands"
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Post(u, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
