package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/shared/storage"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/snappy"
)

var (
	ErrChannelNotFound   = errors.New("channel not found")
	ErrChannelMismatch   = errors.New("genesis block belongs to another channel")
	ErrEmptyBlock        = errors.New("genesis block is empty")
	ErrUnsupportedFcn    = errors.New("unsupported chaincode function")
	ErrInvalidPackage    = errors.New("chaincode package is not snappy encoded")
	ErrMissingChaincode  = errors.New("chaincode id is required")
	ErrMissingTxID       = errors.New("transaction id is required")
	ErrTxAlreadyPending  = errors.New("transaction already submitted")
	ErrInvalidArgsLength = errors.New("invalid number of chaincode arguments")
)

const (
	MessageJoined           = "joined"
	MessageAlreadyJoined    = "already joined"
	MessageInstalled        = "chaincode installed"
	MessageAlreadyInstalled = "chaincode already installed"
	MessageNotInstalled     = "chaincode not installed"
	MessageInstantiated     = "chaincode already instantiated"
	MessageNotInstantiated  = "chaincode not instantiated"
	MessageChannelExists    = "channel already exists"
	MessageSubmitted        = "submitted"

	FcnInit = "init"
	FcnPut  = "put"
	FcnGet  = "get"
)

type genesisBlock struct {
	Channel string `cbor:"channel"`
	Config  []byte `cbor:"config"`
	Creator string `cbor:"creator"`
	TxID    string `cbor:"tx_id"`
}

func genesisKey(channel string) string {
	return "channel/" + channel + "/genesis"
}

func heightKey(channel string) string {
	return "channel/" + channel + "/height"
}

func configKey(channel string, seq int) string {
	return fmt.Sprintf("channel/%s/config/%d", channel, seq)
}

func joinKey(channel, node string) string {
	return "join/" + channel + "/" + node
}

func installKey(node, cc, version string) string {
	return "install/" + node + "/" + cc + "/" + version
}

func chaincodeKey(channel, cc string) string {
	return "chaincode/" + channel + "/" + cc
}

func stateKey(channel, cc, key string) string {
	return "state/" + channel + "/" + cc + "/" + key
}

func txKey(txid string) string {
	return "tx/" + txid
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrKeyNotFound)
}

func (s *ServiceAgent) response(node api.Node, txid string, status int32, message string) *api.ProposalResponse {
	return &api.ProposalResponse{
		Node:    node.String(),
		MSPID:   s.cfg.MSPID,
		TxID:    txid,
		Status:  status,
		Message: message,
	}
}

// checkOwned answers a rejection for nodes this organization cannot administer.
func (s *ServiceAgent) checkOwned(node api.Node, txid string) *api.ProposalResponse {
	if node.IsAdministrableBy(s.cfg.MSPID) {
		return nil
	}
	return s.response(node, txid, 403, fmt.Sprintf("node [%s] is not administrable by [%s]", node, s.cfg.MSPID))
}

func (s *ServiceAgent) NewTxID() (string, error) {
	return s.txGen.Next()
}

func (s *ServiceAgent) channelExists(channel string) (bool, error) {
	_, err := s.store.Get(genesisKey(channel))
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *ServiceAgent) CreateChannel(req *api.ChannelRequest) (*api.ProposalResponses, error) {
	block, err := cbor.Marshal(&genesisBlock{
		Channel: req.Channel,
		Config:  req.Config,
		Creator: s.cfg.MSPID,
		TxID:    req.TxID,
	})
	if err != nil {
		return nil, err
	}
	orderer := api.Node{Name: req.Orderer}
	_, put, err := s.store.SetIfAbsent(genesisKey(req.Channel), block)
	if err != nil {
		return nil, err
	}
	if !put {
		return &api.ProposalResponses{TxID: req.TxID, Responses: []*api.ProposalResponse{
			s.response(orderer, req.TxID, api.StatusFailure, MessageChannelExists),
		}}, nil
	}
	if _, err := s.store.IncrementBy(heightKey(req.Channel), 1); err != nil {
		return nil, err
	}
	_agentLogger.Infof("channel [%s] created by [%s]", req.Channel, s.cfg.MSPID)
	return &api.ProposalResponses{TxID: req.TxID, Responses: []*api.ProposalResponse{
		s.response(orderer, req.TxID, api.StatusSuccess, "channel created"),
	}}, nil
}

func (s *ServiceAgent) UpdateChannel(req *api.ChannelRequest) (*api.ProposalResponses, error) {
	orderer := api.Node{Name: req.Orderer}
	exists, err := s.channelExists(req.Channel)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &api.ProposalResponses{TxID: req.TxID, Responses: []*api.ProposalResponse{
			s.response(orderer, req.TxID, 404, ErrChannelNotFound.Error()),
		}}, nil
	}
	height, err := s.store.IncrementBy(heightKey(req.Channel), 1)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(configKey(req.Channel, height), req.Config); err != nil {
		return nil, err
	}
	return &api.ProposalResponses{TxID: req.TxID, Responses: []*api.ProposalResponse{
		s.response(orderer, req.TxID, api.StatusSuccess, "channel updated"),
	}}, nil
}

func (s *ServiceAgent) GenesisBlock(channel string) ([]byte, error) {
	block, err := s.store.Get(genesisKey(channel))
	if isNotFound(err) {
		return nil, ErrChannelNotFound
	}
	return block, err
}

func (s *ServiceAgent) JoinChannel(channel string, req *api.JoinChannelRequest) (*api.ProposalResponses, error) {
	if len(req.Block) == 0 {
		return nil, ErrEmptyBlock
	}
	block := new(genesisBlock)
	if err := cbor.Unmarshal(req.Block, block); err != nil {
		return nil, fmt.Errorf("decode genesis block: %w", err)
	}
	if block.Channel != channel {
		return nil, ErrChannelMismatch
	}
	// organizations other than the creator learn the channel from its block
	if _, put, err := s.store.SetIfAbsent(genesisKey(channel), req.Block); err != nil {
		return nil, err
	} else if put {
		if _, err := s.store.IncrementBy(heightKey(channel), 1); err != nil {
			return nil, err
		}
	}

	result := &api.ProposalResponses{TxID: req.TxID}
	for _, node := range req.Targets {
		if r := s.checkOwned(node, req.TxID); r != nil {
			result.Responses = append(result.Responses, r)
			continue
		}
		_, put, err := s.store.SetIfAbsent(joinKey(channel, node.Name), []byte(req.TxID))
		if err != nil {
			return nil, err
		}
		if put {
			_agentLogger.Infof("node [%s] joined channel [%s]", node, channel)
			result.Responses = append(result.Responses, s.response(node, req.TxID, api.StatusSuccess, MessageJoined))
		} else {
			result.Responses = append(result.Responses, s.response(node, req.TxID, api.StatusSuccess, MessageAlreadyJoined))
		}
	}
	return result, nil
}

// InstallChaincode expects the package snappy encoded.
func (s *ServiceAgent) InstallChaincode(req *api.InstallChaincodeRequest) (*api.ProposalResponses, error) {
	if req.ChaincodeID == "" {
		return nil, ErrMissingChaincode
	}
	pkg, err := snappy.Decode(nil, req.Package)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPackage, err)
	}
	sum := sha256.Sum256(pkg)
	digest := []byte(hex.EncodeToString(sum[:]))

	result := &api.ProposalResponses{TxID: req.TxID}
	for _, node := range req.Targets {
		if r := s.checkOwned(node, req.TxID); r != nil {
			result.Responses = append(result.Responses, r)
			continue
		}
		_, put, err := s.store.SetIfAbsent(installKey(node.Name, req.ChaincodeID, req.Version), digest)
		if err != nil {
			return nil, err
		}
		if put {
			_agentLogger.Infof("chaincode [%s:%s] installed on node [%s], %d bytes", req.ChaincodeID, req.Version, node, len(pkg))
			result.Responses = append(result.Responses, s.response(node, req.TxID, api.StatusSuccess, MessageInstalled))
		} else {
			result.Responses = append(result.Responses, s.response(node, req.TxID, api.StatusFailure, MessageAlreadyInstalled))
		}
	}
	return result, nil
}

func (s *ServiceAgent) installedOn(node api.Node, cc, version string) (bool, error) {
	_, err := s.store.Get(installKey(node.Name, cc, version))
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *ServiceAgent) instantiatedVersion(channel, cc string) (string, error) {
	v, err := s.store.Get(chaincodeKey(channel, cc))
	if isNotFound(err) {
		return "", nil
	}
	return string(v), err
}

// DeployChaincode instantiates or upgrades a chaincode. The new version takes
// effect when the transaction commits.
func (s *ServiceAgent) DeployChaincode(channel string, req *api.ChaincodeDeployRequest, upgrade bool) (*api.ProposalResponses, error) {
	if req.ChaincodeID == "" {
		return nil, ErrMissingChaincode
	}
	if req.TxID == "" {
		return nil, ErrMissingTxID
	}
	exists, err := s.channelExists(channel)
	if err != nil {
		return nil, err
	}
	current, err := s.instantiatedVersion(channel, req.ChaincodeID)
	if err != nil {
		return nil, err
	}

	result := &api.ProposalResponses{TxID: req.TxID}
	rejected := false
	for _, node := range req.Targets {
		var r *api.ProposalResponse
		installed, err := s.installedOn(node, req.ChaincodeID, req.Version)
		switch {
		case err != nil:
			return nil, err
		case !exists:
			r = s.response(node, req.TxID, 404, ErrChannelNotFound.Error())
		case upgrade && current == "":
			r = s.response(node, req.TxID, api.StatusFailure, MessageNotInstantiated)
		case !upgrade && current != "":
			r = s.response(node, req.TxID, api.StatusFailure, MessageInstantiated)
		case !installed:
			r = s.response(node, req.TxID, api.StatusFailure, MessageNotInstalled)
		default:
			r = s.response(node, req.TxID, api.StatusSuccess, "")
		}
		if r.Status != api.StatusSuccess {
			rejected = true
		}
		result.Responses = append(result.Responses, r)
	}
	if rejected || len(req.Targets) == 0 {
		return result, nil
	}

	version := req.Version
	err = s.scheduleCommit(req.TxID, channel, api.CommitCodeValid, func() error {
		return s.store.Set(chaincodeKey(channel, req.ChaincodeID), []byte(version))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Propose simulates a chaincode call on every target without writing state.
func (s *ServiceAgent) Propose(channel string, req *api.TransactionRequest) (*api.ProposalResponses, error) {
	version, err := s.instantiatedVersion(channel, req.ChaincodeID)
	if err != nil {
		return nil, err
	}
	result := &api.ProposalResponses{TxID: req.TxID}
	for _, node := range req.Targets {
		if version == "" {
			result.Responses = append(result.Responses, s.response(node, req.TxID, api.StatusFailure, MessageNotInstantiated))
			continue
		}
		payload, err := s.simulate(channel, req)
		if err != nil {
			result.Responses = append(result.Responses, s.response(node, req.TxID, 400, err.Error()))
			continue
		}
		r := s.response(node, req.TxID, api.StatusSuccess, "")
		r.Payload = payload
		result.Responses = append(result.Responses, r)
	}
	return result, nil
}

func (s *ServiceAgent) simulate(channel string, req *api.TransactionRequest) ([]byte, error) {
	switch req.Fcn {
	case FcnPut:
		if len(req.Args) != 2 {
			return nil, ErrInvalidArgsLength
		}
		return req.Args[1], nil
	case FcnGet:
		if len(req.Args) != 1 {
			return nil, ErrInvalidArgsLength
		}
		v, err := s.store.Get(stateKey(channel, req.ChaincodeID, string(req.Args[0])))
		if isNotFound(err) {
			return nil, nil
		}
		return v, err
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFcn, req.Fcn)
	}
}

// SubmitTransaction orders an endorsed transaction. Its writes are applied
// when it commits.
func (s *ServiceAgent) SubmitTransaction(channel string, req *api.TransactionRequest) (*api.ProposalResponses, error) {
	if req.TxID == "" {
		return nil, ErrMissingTxID
	}
	code := api.CommitCodeValid
	if len(req.Endorsements) == 0 {
		code = api.CommitCodeEndorsementPolicyFailure
	}
	for _, e := range req.Endorsements {
		if e.Status != api.StatusSuccess {
			code = api.CommitCodeEndorsementPolicyFailure
		}
	}
	if code == api.CommitCodeValid {
		if version, err := s.instantiatedVersion(channel, req.ChaincodeID); err != nil {
			return nil, err
		} else if version == "" {
			code = api.CommitCodeChaincodeNotFound
		}
	}

	var apply func() error
	if req.Fcn == FcnPut && len(req.Args) == 2 {
		key, value := string(req.Args[0]), req.Args[1]
		apply = func() error {
			return s.store.Set(stateKey(channel, req.ChaincodeID, key), value)
		}
	}
	if err := s.scheduleCommit(req.TxID, channel, code, apply); err != nil {
		return nil, err
	}
	return &api.ProposalResponses{TxID: req.TxID, Responses: []*api.ProposalResponse{
		s.response(api.Node{Name: s.cfg.MSPID}, req.TxID, api.StatusSuccess, MessageSubmitted),
	}}, nil
}

func (s *ServiceAgent) Query(channel string, req *api.TransactionRequest) ([][]byte, error) {
	if req.Fcn != FcnGet {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFcn, req.Fcn)
	}
	var payloads [][]byte
	targets := len(req.Targets)
	if targets == 0 {
		targets = 1
	}
	for i := 0; i < targets; i++ {
		p, err := s.simulate(channel, req)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, p)
	}
	return payloads, nil
}

func (s *ServiceAgent) scheduleCommit(txid, channel, code string, apply func() error) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return ErrAgentClosed
	}
	if _, ok := s.pending[txid]; ok {
		return ErrTxAlreadyPending
	}
	s.pending[txid] = time.AfterFunc(s.cfg.CommitDelay, func() {
		s.commit(txid, channel, code, apply)
	})
	return nil
}

func (s *ServiceAgent) commit(txid, channel, code string, apply func() error) {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	delete(s.pending, txid)
	s.lock.Unlock()

	status := &api.CommitStatus{TxID: txid, Valid: code == api.CommitCodeValid, Code: code}
	if status.Valid && apply != nil {
		if err := apply(); err != nil {
			_agentLogger.Errorf("applying transaction [%s] failed: %s", txid, err)
			status.Valid = false
			status.Code = err.Error()
		}
	}
	height, err := s.store.IncrementBy(heightKey(channel), 1)
	if err != nil {
		_agentLogger.Errorf("advancing channel [%s] failed: %s", channel, err)
	}
	status.BlockNumber = height - 1

	data, err := cbor.Marshal(status)
	if err != nil {
		_agentLogger.Errorf("encoding commit status of [%s] failed: %s", txid, err)
		return
	}
	if err := s.store.Set(txKey(txid), data); err != nil {
		_agentLogger.Errorf("recording commit status of [%s] failed: %s", txid, err)
		return
	}
	_agentLogger.Debugf("transaction [%s] committed in block %d of [%s] as %s", txid, status.BlockNumber, channel, status.Code)

	s.lock.Lock()
	chans := s.watchers[txid]
	delete(s.watchers, txid)
	s.lock.Unlock()
	for _, ch := range chans {
		ch <- status
	}
}

// watchCommit returns the commit status when already known, otherwise a
// channel receiving it. cancel must be called when the caller stops waiting.
func (s *ServiceAgent) watchCommit(txid string) (*api.CommitStatus, <-chan *api.CommitStatus, func(), error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil, nil, nil, ErrAgentClosed
	}
	data, err := s.store.Get(txKey(txid))
	if err == nil {
		status := new(api.CommitStatus)
		if err := cbor.Unmarshal(data, status); err != nil {
			return nil, nil, nil, err
		}
		return status, nil, func() {}, nil
	} else if !isNotFound(err) {
		return nil, nil, nil, err
	}

	ch := make(chan *api.CommitStatus, 1)
	s.watchers[txid] = append(s.watchers[txid], ch)
	cancel := func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		list := s.watchers[txid]
		for i, v := range list {
			if v == ch {
				s.watchers[txid] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(s.watchers[txid]) == 0 {
			delete(s.watchers, txid)
		}
	}
	return nil, ch, cancel, nil
}
