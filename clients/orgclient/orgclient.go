// Package orgclient talks to the admin agent of one organization.
package orgclient

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/shared/logging"
	"github.com/meidoworks/orgsync/shared/netaddons/httpaddons"
	"github.com/meidoworks/orgsync/shared/netaddons/localswitch"
	"github.com/meidoworks/orgsync/shared/thirdpartyshared/ginshared"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-resty/resty/v2"
	"github.com/golang/snappy"
)

var _orgClientLogger = logging.NewLogger("OrgClient")

type OrgClient struct {
	msp string
	rr  *resty.Client
}

var _ api.OrgClient = new(OrgClient)

// NewOrgClient returns a client for the agent at addr (host:port or URL).
func NewOrgClient(msp, addr string) *OrgClient {
	return newOrgClient(msp, resty.New(), addr)
}

// NewLocalSwitchOrgClient reaches an agent served in-process on trafficIndex.
func NewLocalSwitchOrgClient(msp string, lswitch *localswitch.LocalSwitch, trafficIndex uint8) *OrgClient {
	hc := localswitch.NewLocalSwitchHttpClient(lswitch, trafficIndex)
	return newOrgClient(msp, resty.NewWithClient(hc), api.DefaultConfigLocalSwitchAgentAddress)
}

func newOrgClient(msp string, rr *resty.Client, addr string) *OrgClient {
	if u, err := url.Parse(addr); err != nil || u.Scheme == "" || u.Host == "" {
		addr = "http://" + addr
	}
	rr.SetBaseURL(addr)
	rr.SetHeader("Accept", ginshared.ContentTypeCbor)
	return &OrgClient{
		msp: msp,
		rr:  rr,
	}
}

func (c *OrgClient) Kind() api.ClientKind {
	return api.KindSingleOrg
}

func (c *OrgClient) MSPID() string {
	return c.msp
}

func (c *OrgClient) call(ctx context.Context, op, method, path string, body, out interface{}) error {
	req := c.rr.R().SetContext(ctx)
	if body != nil {
		data, err := cbor.Marshal(body)
		if err != nil {
			return err
		}
		req.SetHeader("Content-Type", ginshared.ContentTypeCbor).SetBody(data)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.IsSuccess() {
		return &StatusError{Op: op, Status: resp.StatusCode(), Message: resp.String()}
	}
	if out != nil {
		if err := cbor.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

// Initialize checks that the agent serves this client's organization.
func (c *OrgClient) Initialize(ctx context.Context) error {
	id, err := c.Identity(ctx)
	if err != nil {
		return err
	}
	if id.MSPID != c.msp {
		return fmt.Errorf("%w: expect [%s], agent is [%s]", ErrIdentityMismatch, c.msp, id.MSPID)
	}
	_orgClientLogger.Infof("organization [%s] agent administers %d node(s)", c.msp, len(id.Nodes))
	return nil
}

func (c *OrgClient) Identity(ctx context.Context) (*api.IdentityResponse, error) {
	id := new(api.IdentityResponse)
	if err := c.call(ctx, "Identity", http.MethodGet, "/v1/identity", nil, id); err != nil {
		return nil, err
	}
	return id, nil
}

func (c *OrgClient) NewTxID() (string, error) {
	r := new(api.TxIDResponse)
	if err := c.call(context.Background(), "NewTxID", http.MethodPost, "/v1/txid", nil, r); err != nil {
		return "", err
	}
	return r.TxID, nil
}

func (c *OrgClient) GenesisBlock(ctx context.Context, channel string) ([]byte, error) {
	r := new(api.GenesisResponse)
	if err := c.call(ctx, "GenesisBlock", http.MethodGet, channelPath(channel, "/genesis"), nil, r); err != nil {
		return nil, err
	}
	return r.Block, nil
}

func (c *OrgClient) ChannelNodes(ctx context.Context, channel string) ([]api.Node, error) {
	r := new(api.NodesResponse)
	if err := c.call(ctx, "ChannelNodes", http.MethodGet, channelPath(channel, "/nodes"), nil, r); err != nil {
		return nil, err
	}
	return r.Nodes, nil
}

func (c *OrgClient) JoinChannel(ctx context.Context, req *api.JoinChannelRequest) (*api.Outcome, error) {
	return c.proposal(ctx, "JoinChannel", channelPath(req.Channel, "/join"), req, false)
}

// InstallChaincode sends the package snappy compressed.
func (c *OrgClient) InstallChaincode(ctx context.Context, req *api.InstallChaincodeRequest) (*api.Outcome, error) {
	wire := *req
	wire.Package = snappy.Encode(nil, req.Package)
	return c.proposal(ctx, "InstallChaincode", "/v1/chaincodes/install", &wire, false)
}

func (c *OrgClient) CreateChannel(ctx context.Context, req *api.ChannelRequest) (*api.Outcome, error) {
	return c.proposal(ctx, "CreateChannel", channelPath(req.Channel, "/create"), req, false)
}

func (c *OrgClient) UpdateChannel(ctx context.Context, req *api.ChannelRequest) (*api.Outcome, error) {
	return c.proposal(ctx, "UpdateChannel", channelPath(req.Channel, "/update"), req, false)
}

func (c *OrgClient) InstantiateChaincode(ctx context.Context, req *api.ChaincodeDeployRequest) (*api.Outcome, error) {
	return c.proposal(ctx, "InstantiateChaincode", channelPath(req.Channel, "/chaincodes/instantiate"), req, true)
}

func (c *OrgClient) UpgradeChaincode(ctx context.Context, req *api.ChaincodeDeployRequest) (*api.Outcome, error) {
	return c.proposal(ctx, "UpgradeChaincode", channelPath(req.Channel, "/chaincodes/upgrade"), req, true)
}

func (c *OrgClient) SendTransactionProposal(ctx context.Context, req *api.TransactionRequest) (*api.Outcome, error) {
	return c.proposal(ctx, "SendTransactionProposal", channelPath(req.Channel, "/proposal"), req, false)
}

func (c *OrgClient) SendTransaction(ctx context.Context, req *api.TransactionRequest) (*api.Outcome, error) {
	return c.proposal(ctx, "SendTransaction", channelPath(req.Channel, "/transaction"), req, true)
}

func (c *OrgClient) QueryByChaincode(ctx context.Context, req *api.TransactionRequest) ([][]byte, error) {
	r := new(api.QueryResponse)
	if err := c.call(ctx, "QueryByChaincode", http.MethodPost, channelPath(req.Channel, "/query"), req, r); err != nil {
		return nil, err
	}
	return r.Payloads, nil
}

// Invoke endorses the transaction on its targets and submits it. The outcome
// completes when the transaction commits.
func (c *OrgClient) Invoke(ctx context.Context, req *api.TransactionRequest) (*api.Outcome, error) {
	proposal := *req
	if proposal.TxID == "" {
		txid, err := c.NewTxID()
		if err != nil {
			return nil, err
		}
		proposal.TxID = txid
	}
	endorsed, err := c.SendTransactionProposal(ctx, &proposal)
	if err != nil {
		return nil, err
	}
	proposal.Endorsements = endorsed.Responses
	return c.SendTransaction(ctx, &proposal)
}

func (c *OrgClient) proposal(ctx context.Context, op, path string, body interface{}, committed bool) (*api.Outcome, error) {
	r := new(api.ProposalResponses)
	if err := c.call(ctx, op, http.MethodPost, path, body, r); err != nil {
		return nil, err
	}
	for _, v := range r.Responses {
		if v.Status >= 400 {
			return nil, &RejectedError{Op: op, Response: v.Node, Status: v.Status, Message: v.Message}
		}
	}
	outcome := &api.Outcome{Responses: r.Responses, Completion: api.Resolved}
	if committed {
		txid := r.TxID
		outcome.Completion = api.FutureFunc(func(ctx context.Context) error {
			return c.WaitCommit(ctx, txid)
		})
	}
	return outcome, nil
}

// WaitCommit long-polls the agent until the transaction is in a block.
func (c *OrgClient) WaitCommit(ctx context.Context, txid string) error {
	for {
		status, err := c.pollCommit(ctx, txid)
		if err != nil {
			return err
		}
		if status == nil {
			// poll timed out on the agent side
			continue
		}
		if !status.Valid {
			return fmt.Errorf("%w: [%s] %s", ErrTransactionInvalid, txid, status.Code)
		}
		_orgClientLogger.Debugf("transaction [%s] committed in block %d", txid, status.BlockNumber)
		return nil
	}
}

func (c *OrgClient) pollCommit(ctx context.Context, txid string) (*api.CommitStatus, error) {
	resp, err := c.rr.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/v1/tx/" + url.PathEscape(txid) + "/wait")
	if err != nil {
		return nil, fmt.Errorf("WaitCommit: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, &StatusError{Op: "WaitCommit", Status: resp.StatusCode()}
	}
	msg, err := httpaddons.PollingMessage(bufio.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("WaitCommit: %w", err)
	}
	status := new(api.CommitStatus)
	if err := cbor.Unmarshal(msg, status); err != nil {
		return nil, fmt.Errorf("WaitCommit: decode status: %w", err)
	}
	return status, nil
}

func channelPath(channel, suffix string) string {
	return "/v1/channels/" + url.PathEscape(channel) + suffix
}
