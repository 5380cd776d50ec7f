package cdp

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"
)

var devtoolsURLPattern = regexp.MustCompile(`DevTools listening on (ws://\S+)`)

// parseDevtoolsURL extracts the debugger endpoint from one line of browser
// stderr output.
func parseDevtoolsURL(line string) (string, bool) {
	m := devtoolsURLPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

type launchedBrowser struct {
	cmd      *exec.Cmd
	wsURL    string
	waitDone chan struct{}
}

// launchBrowser starts the browser with an ephemeral debugging port and waits
// for it to advertise its DevTools endpoint on stderr.
func launchBrowser(ctx context.Context, cfg Config) (*launchedBrowser, error) {
	execPath := cfg.ExecPath
	if execPath == "" {
		for _, candidate := range execCandidates {
			if p, err := exec.LookPath(candidate); err == nil {
				execPath = p
				break
			}
		}
		if execPath == "" {
			return nil, fmt.Errorf("no browser binary found (tried %v)", execCandidates)
		}
	}

	args := []string{
		"--remote-debugging-port=0",
		"--no-first-run",
		"--no-default-browser-check",
	}
	if cfg.UserDataDir != "" {
		args = append(args, "--user-data-dir="+cfg.UserDataDir)
	}
	if cfg.Headless {
		args = append(args, "--headless=new", "--disable-gpu")
	}
	args = append(args, cfg.ExtraArgs...)
	args = append(args, "about:blank")

	cmd := exec.Command(execPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}

	waitDone := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waitDone)
	}()

	urlCh := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(stderr)
		found := false
		for scanner.Scan() {
			if found {
				continue // keep draining so the pipe never blocks the browser
			}
			if url, ok := parseDevtoolsURL(scanner.Text()); ok {
				found = true
				urlCh <- url
			}
		}
	}()

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case wsURL := <-urlCh:
		return &launchedBrowser{cmd: cmd, wsURL: wsURL, waitDone: waitDone}, nil
	case <-waitDone:
		return nil, fmt.Errorf("browser exited before advertising a DevTools endpoint")
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		<-waitDone
		return nil, fmt.Errorf("timed out waiting for DevTools endpoint")
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitDone
		return nil, ctx.Err()
	}
}

// shutdown terminates the browser process.
func (b *launchedBrowser) shutdown() {
	select {
	case <-b.waitDone:
		return
	default:
	}
	_ = b.cmd.Process.Kill()
	<-b.waitDone
}
