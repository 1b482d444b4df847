/*
Copyright 2025 Payrun Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package payrun

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/payrunhq/payrun/config"
	"github.com/payrunhq/payrun/internal/request"
	"github.com/payrunhq/payrun/model"
)

// PortalAgentActuator executes work against provider portals by delegating
// to an external automation agent over HTTP. The agent owns the browser
// sessions; this side only submits one code at a time and interprets the
// agent's verdict.
type PortalAgentActuator struct{}

type portalAgentRequest struct {
	Service string `json:"service"`
	Phone   string `json:"phone"`
	Amount  int64  `json:"amount,omitempty"`
}

type portalAgentResponse struct {
	Status  string                 `json:"status"`
	Amount  *float64               `json:"amount,omitempty"`
	Notes   string                 `json:"notes,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func (a *PortalAgentActuator) Execute(ctx context.Context, serviceType string, code model.Code) (*model.Outcome, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if cnf.Portal.AgentUrl == "" {
		return nil, NewHardFailure("portal agent url is not configured")
	}

	body, err := request.ToJsonReq(portalAgentRequest{
		Service: serviceType,
		Phone:   code.Phone,
		Amount:  code.Amount,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cnf.Portal.TimeoutSec)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cnf.Portal.AgentUrl, body)
	if err != nil {
		return nil, err
	}
	for key, value := range cnf.Portal.Headers {
		req.Header.Set(key, value)
	}

	var agentResp portalAgentResponse
	resp, err := request.Call(req, &agentResp)
	if err != nil {
		return nil, NewSoftFailure(fmt.Sprintf("portal agent unreachable: %v", err), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewSoftFailure(fmt.Sprintf("portal agent returned status %d", resp.StatusCode), nil)
	}

	switch agentResp.Status {
	case "success":
		return &model.Outcome{
			Amount:  agentResp.Amount,
			Notes:   agentResp.Notes,
			Details: agentResp.Details,
		}, nil
	case "rejected":
		return nil, NewHardFailure(agentResp.Error)
	default:
		return nil, NewSoftFailure(agentResp.Error, nil)
	}
}
