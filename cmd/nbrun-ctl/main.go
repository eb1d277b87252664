package main

import (
    "bytes"
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "io"
    "net/http"
    "os"
    "strings"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/transport/udp"
)

const usage = `usage: nbrun-ctl [flags] <command> [args]

commands:
  status            show the active and last run
  scripts           list runnable scripts
  runs              list finished runs
  run <script>      start a script
  stop              stop the active run
  reports           show recent error reports
  send <addr> <msg> send a UDP datagram and print any reply
`

func main() {
    api := flag.String("api", "http://127.0.0.1:7780", "control API base URL")
    timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
    flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
    flag.Parse()
    args := flag.Args()
    if len(args) == 0 {
        flag.Usage()
        os.Exit(2)
    }

    ctx, cancel := context.WithTimeout(context.Background(), *timeout)
    defer cancel()
    c := &client{base: strings.TrimRight(*api, "/"), http: &http.Client{}}

    var err error
    switch args[0] {
    case "status":
        err = c.call(ctx, http.MethodGet, "/v1/status", nil)
    case "scripts":
        err = c.call(ctx, http.MethodGet, "/v1/scripts", nil)
    case "runs":
        err = c.call(ctx, http.MethodGet, "/v1/runs", nil)
    case "reports":
        err = c.call(ctx, http.MethodGet, "/v1/reports", nil)
    case "stop":
        err = c.call(ctx, http.MethodPost, "/v1/stop", nil)
    case "run":
        if len(args) < 2 { fatalf("run needs a script name") }
        err = c.call(ctx, http.MethodPost, "/v1/runs", map[string]string{"script": args[1]})
    case "send":
        if len(args) < 3 { fatalf("send needs an address and a message") }
        err = send(args[1], strings.Join(args[2:], " "), *timeout)
    default:
        flag.Usage()
        os.Exit(2)
    }
    if err != nil { fatalf("%s: %v", args[0], err) }
}

type client struct {
    base string
    http *http.Client
}

// call sends body as JSON and pretty-prints the JSON response.
func (c *client) call(ctx context.Context, method, path string, body any) error {
    var rd io.Reader
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return err }
        rd = bytes.NewReader(b)
    }
    req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
    if err != nil { return err }
    if body != nil { req.Header.Set("Content-Type", "application/json") }
    resp, err := c.http.Do(req)
    if err != nil { return err }
    defer resp.Body.Close()
    raw, err := io.ReadAll(resp.Body)
    if err != nil { return err }
    var pretty bytes.Buffer
    if json.Indent(&pretty, raw, "", "  ") != nil { pretty.Write(raw) }
    fmt.Println(pretty.String())
    if resp.StatusCode >= 300 { return fmt.Errorf("server answered %s", resp.Status) }
    return nil
}

// send writes msg to addr from an ephemeral socket and prints the replies
// that arrive before the timeout.
func send(addr, msg string, timeout time.Duration) error {
    sock, err := udp.ListenSocket("127.0.0.1:0", 64)
    if err != nil { return err }
    defer sock.Close()
    if err := sock.WriteTo([]byte(msg), addr); err != nil { return err }
    deadline := time.Now().Add(timeout)
    for time.Now().Before(deadline) {
        for _, p := range sock.Drain(0) { fmt.Printf("%s: %s\n", p.From, p.Data) }
        if err := sock.Err(); err != nil { return err }
        time.Sleep(20 * time.Millisecond)
    }
    return nil
}

func fatalf(format string, a ...any) {
    fmt.Fprintf(os.Stderr, format+"\n", a...)
    os.Exit(1)
}
