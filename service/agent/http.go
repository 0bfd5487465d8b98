package agent

import (
	"errors"
	"net/http"
	"time"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/shared/netaddons/httpaddons"
	"github.com/meidoworks/orgsync/shared/thirdpartyshared/ginshared"

	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
)

func badRequest(err error) ginshared.Render {
	return ginshared.RenderString(http.StatusBadRequest, err.Error())
}

func (s *ServiceAgent) registerRoutes() {
	e := s.engine

	e.GET("/v1/identity", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		return ginshared.RenderCbor(http.StatusOK, &api.IdentityResponse{
			MSPID: s.cfg.MSPID,
			Nodes: s.Owned(),
		})
	}))

	e.POST("/v1/txid", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		txid, err := s.NewTxID()
		if err != nil {
			return ginshared.RenderError(err)
		}
		return ginshared.RenderCbor(http.StatusOK, &api.TxIDResponse{TxID: txid})
	}))

	e.POST("/v1/chaincodes/install", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		req := new(api.InstallChaincodeRequest)
		if err := ginshared.BindCbor(ctx, req); err != nil {
			return badRequest(err)
		}
		r, err := s.InstallChaincode(req)
		if errors.Is(err, ErrInvalidPackage) || errors.Is(err, ErrMissingChaincode) {
			return badRequest(err)
		} else if err != nil {
			return ginshared.RenderError(err)
		}
		return ginshared.RenderCbor(http.StatusOK, r)
	}))

	channels := e.Group("/v1/channels/:channel")

	channels.GET("/genesis", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		channel := ctx.Param("channel")
		block, err := s.GenesisBlock(channel)
		if errors.Is(err, ErrChannelNotFound) {
			return ginshared.RenderString(http.StatusNotFound, err.Error())
		} else if err != nil {
			return ginshared.RenderError(err)
		}
		return ginshared.RenderCbor(http.StatusOK, &api.GenesisResponse{Channel: channel, Block: block})
	}))

	channels.GET("/nodes", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		return ginshared.RenderCbor(http.StatusOK, &api.NodesResponse{Nodes: s.cfg.Network})
	}))

	channels.POST("/join", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		req := new(api.JoinChannelRequest)
		if err := ginshared.BindCbor(ctx, req); err != nil {
			return badRequest(err)
		}
		r, err := s.JoinChannel(ctx.Param("channel"), req)
		if errors.Is(err, ErrEmptyBlock) || errors.Is(err, ErrChannelMismatch) {
			return badRequest(err)
		} else if err != nil {
			return ginshared.RenderError(err)
		}
		return ginshared.RenderCbor(http.StatusOK, r)
	}))

	channelOp := func(op func(req *api.ChannelRequest) (*api.ProposalResponses, error)) gin.HandlerFunc {
		return ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
			req := new(api.ChannelRequest)
			if err := ginshared.BindCbor(ctx, req); err != nil {
				return badRequest(err)
			}
			req.Channel = ctx.Param("channel")
			r, err := op(req)
			if err != nil {
				return ginshared.RenderError(err)
			}
			return ginshared.RenderCbor(http.StatusOK, r)
		})
	}
	channels.POST("/create", channelOp(s.CreateChannel))
	channels.POST("/update", channelOp(s.UpdateChannel))

	deployOp := func(upgrade bool) gin.HandlerFunc {
		return ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
			req := new(api.ChaincodeDeployRequest)
			if err := ginshared.BindCbor(ctx, req); err != nil {
				return badRequest(err)
			}
			r, err := s.DeployChaincode(ctx.Param("channel"), req, upgrade)
			if errors.Is(err, ErrMissingChaincode) || errors.Is(err, ErrMissingTxID) {
				return badRequest(err)
			} else if errors.Is(err, ErrTxAlreadyPending) {
				return ginshared.RenderString(http.StatusConflict, err.Error())
			} else if err != nil {
				return ginshared.RenderError(err)
			}
			return ginshared.RenderCbor(http.StatusOK, r)
		})
	}
	channels.POST("/chaincodes/instantiate", deployOp(false))
	channels.POST("/chaincodes/upgrade", deployOp(true))

	channels.POST("/proposal", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		req := new(api.TransactionRequest)
		if err := ginshared.BindCbor(ctx, req); err != nil {
			return badRequest(err)
		}
		r, err := s.Propose(ctx.Param("channel"), req)
		if err != nil {
			return ginshared.RenderError(err)
		}
		return ginshared.RenderCbor(http.StatusOK, r)
	}))

	channels.POST("/transaction", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		req := new(api.TransactionRequest)
		if err := ginshared.BindCbor(ctx, req); err != nil {
			return badRequest(err)
		}
		r, err := s.SubmitTransaction(ctx.Param("channel"), req)
		if errors.Is(err, ErrMissingTxID) {
			return badRequest(err)
		} else if errors.Is(err, ErrTxAlreadyPending) {
			return ginshared.RenderString(http.StatusConflict, err.Error())
		} else if err != nil {
			return ginshared.RenderError(err)
		}
		return ginshared.RenderCbor(http.StatusOK, r)
	}))

	channels.POST("/query", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		req := new(api.TransactionRequest)
		if err := ginshared.BindCbor(ctx, req); err != nil {
			return badRequest(err)
		}
		payloads, err := s.Query(ctx.Param("channel"), req)
		if errors.Is(err, ErrUnsupportedFcn) || errors.Is(err, ErrInvalidArgsLength) {
			return badRequest(err)
		} else if err != nil {
			return ginshared.RenderError(err)
		}
		return ginshared.RenderCbor(http.StatusOK, &api.QueryResponse{Payloads: payloads})
	}))

	e.GET("/v1/tx/:txid/wait", s.waitTransaction)
}

// waitTransaction long-polls the commit of a transaction. It answers one
// framed CBOR message with the commit status, or 204 when the poll timed out
// before the commit.
func (s *ServiceAgent) waitTransaction(ctx *gin.Context) {
	txid := ctx.Param("txid")
	status, ch, cancel, err := s.watchCommit(txid)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	defer cancel()

	if status == nil {
		timer := time.NewTimer(s.cfg.PollTimeout)
		defer timer.Stop()
		select {
		case status = <-ch:
		case <-timer.C:
			ctx.Status(http.StatusNoContent)
			return
		case <-ctx.Request.Context().Done():
			return
		}
	}

	data, err := cbor.Marshal(status)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.Header("Content-Type", ginshared.ContentTypeCbor)
	ctx.Status(http.StatusOK)
	if err := httpaddons.SendMessage(ctx.Writer, data); err != nil {
		_agentLogger.Warnf("sending commit status of [%s] failed: %s", txid, err)
	}
}
