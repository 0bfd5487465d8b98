package coordinator

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/meidoworks/orgsync/api"
	"github.com/meidoworks/orgsync/clients/orgclient"
	"github.com/meidoworks/orgsync/service/barrier"
	"github.com/meidoworks/orgsync/service/dispatch"
	"github.com/meidoworks/orgsync/shared/thirdpartyshared/ginshared"

	"github.com/gin-gonic/gin"
)

type joinRequest struct {
	Nodes []string `json:"nodes"`
}

type installRequest struct {
	Nodes       []string `json:"nodes"`
	ChaincodeID string   `json:"chaincode_id"`
	Version     string   `json:"version"`
	Path        string   `json:"path"`
	Type        string   `json:"type"`
	Package     []byte   `json:"package"`
}

func errorRender(err error) ginshared.Render {
	var pe *dispatch.PartitionError
	switch {
	case errors.Is(err, ErrUnknownNode):
		return ginshared.RenderString(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoBarrier), errors.Is(err, barrier.ErrServerClosed):
		return ginshared.RenderString(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, barrier.ErrTimeout):
		return ginshared.RenderString(http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &pe), errors.Is(err, orgclient.ErrProposalRejected):
		return ginshared.RenderString(http.StatusBadGateway, err.Error())
	default:
		return ginshared.RenderError(err)
	}
}

func (c *Coordinator) registerRoutes() {
	e := c.engine

	e.GET("/v1/barrier/status", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		if c.barrier == nil {
			return errorRender(ErrNoBarrier)
		}
		return ginshared.RenderJson(http.StatusOK, c.barrier.Status())
	}))

	e.POST("/v1/barrier/wait", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		if c.barrier == nil {
			return errorRender(ErrNoBarrier)
		}
		timeout := c.cfg.WaitTimeout
		if v := ctx.Query("timeout_ms"); v != "" {
			ms, err := strconv.Atoi(v)
			if err != nil || ms <= 0 {
				return ginshared.RenderString(http.StatusBadRequest, "invalid timeout_ms")
			}
			timeout = time.Duration(ms) * time.Millisecond
		}
		if err := c.barrier.RequestResponses(timeout); err != nil {
			return errorRender(err)
		}
		return ginshared.RenderJson(http.StatusOK, c.barrier.Status())
	}))

	e.POST("/v1/barrier/complete", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		if c.barrier == nil {
			return errorRender(ErrNoBarrier)
		}
		c.barrier.SendCompleted()
		return ginshared.RenderStatus(http.StatusNoContent)
	}))

	e.POST("/v1/channels/:channel/join", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		req := new(joinRequest)
		if ctx.Request.ContentLength != 0 {
			if err := ctx.ShouldBindJSON(req); err != nil {
				return ginshared.RenderString(http.StatusBadRequest, err.Error())
			}
		}
		rendezvous := ctx.Query("rendezvous") == "true"
		v, err := c.JoinChannel(ctx.Request.Context(), ctx.Param("channel"), req.Nodes, rendezvous)
		if err != nil {
			return errorRender(err)
		}
		return ginshared.RenderJson(http.StatusOK, v)
	}))

	e.POST("/v1/chaincodes/install", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		req := new(installRequest)
		if err := ctx.ShouldBindJSON(req); err != nil {
			return ginshared.RenderString(http.StatusBadRequest, err.Error())
		}
		if req.ChaincodeID == "" {
			return ginshared.RenderString(http.StatusBadRequest, "chaincode_id is required")
		}
		v, err := c.InstallChaincode(ctx.Request.Context(), &api.InstallChaincodeRequest{
			ChaincodeID: req.ChaincodeID,
			Version:     req.Version,
			Path:        req.Path,
			Type:        req.Type,
			Package:     req.Package,
		}, req.Nodes)
		if err != nil {
			return errorRender(err)
		}
		return ginshared.RenderJson(http.StatusOK, v)
	}))
}
