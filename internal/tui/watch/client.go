package watch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/forgehand/internal/api"
	"github.com/mattjoyce/forgehand/internal/pool"
)

// --- Message types ---

type healthMsg api.HealthzResponse

type workersMsg []pool.WorkerInfo

type invocationsMsg []api.InvocationResponse

type toolchainsMsg []api.ToolchainInfo

type tickMsg time.Time

type errMsg error

// --- Commands ---

func fetchJSON(apiURL, apiKey, path string, out any) error {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest(http.MethodGet, apiURL+path, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// fetchHealth queries the /healthz endpoint.
func fetchHealth(apiURL, apiKey string) tea.Cmd {
	return func() tea.Msg {
		var h healthMsg
		if err := fetchJSON(apiURL, apiKey, "/healthz", &h); err != nil {
			return errMsg(err)
		}
		return h
	}
}

// fetchWorkers queries the /v1/workers endpoint.
func fetchWorkers(apiURL, apiKey string) tea.Cmd {
	return func() tea.Msg {
		var w []pool.WorkerInfo
		if err := fetchJSON(apiURL, apiKey, "/v1/workers", &w); err != nil {
			return errMsg(err)
		}
		return workersMsg(w)
	}
}

// fetchInvocations queries the /v1/invocations endpoint.
func fetchInvocations(apiURL, apiKey string) tea.Cmd {
	return func() tea.Msg {
		var invs []api.InvocationResponse
		if err := fetchJSON(apiURL, apiKey, "/v1/invocations", &invs); err != nil {
			return errMsg(err)
		}
		return invocationsMsg(invs)
	}
}

// fetchToolchains queries the /v1/toolchains endpoint.
func fetchToolchains(apiURL, apiKey string) tea.Cmd {
	return func() tea.Msg {
		var tcs []api.ToolchainInfo
		if err := fetchJSON(apiURL, apiKey, "/v1/toolchains", &tcs); err != nil {
			return errMsg(err)
		}
		return toolchainsMsg(tcs)
	}
}
