package config

import "errors"

var (
	ErrInvalidLogLevel        = errors.New("invalid log level")
	ErrNodeWithoutName        = errors.New("node name is empty")
	ErrNodeWithoutOwner       = errors.New("node requires msp_id and admin_msps")
	ErrDuplicatedNode         = errors.New("duplicated node")
	ErrNoOrganizations        = errors.New("no organization configured")
	ErrIncompleteOrganization = errors.New("organization requires msp_id and agent")
	ErrDuplicatedOrganization = errors.New("duplicated organization")
	ErrMultiplePrimaries      = errors.New("more than one primary organization")
	ErrNoAgentMSPID           = errors.New("agent msp_id is empty")
	ErrIncompleteParticipant  = errors.New("participant requires server and msp_ids")
)
