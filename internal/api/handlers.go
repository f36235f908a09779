package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/block-0x/signet/pkg/wallet"
)

// Handlers serve the controller actions. Every action answers 200 with the
// resulting state; failures are reported in its error field.
type Handlers struct {
	ctrl Controller
}

func NewHandlers(ctrl Controller) *Handlers {
	return &Handlers{ctrl: ctrl}
}

func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.State())
}

// Networks lists the catalog in wallet_addEthereumChain form.
func (h *Handlers) Networks(c *gin.Context) {
	all := h.ctrl.Catalog().All()
	out := make([]wallet.AddChainParams, 0, len(all))
	for _, n := range all {
		out = append(out, n.AddChainParams())
	}
	c.JSON(http.StatusOK, gin.H{"networks": out})
}

func (h *Handlers) Connect(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.ConnectWallet(c.Request.Context()))
}

func (h *Handlers) Disconnect(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Disconnect(c.Request.Context()))
}

func (h *Handlers) Network(c *gin.Context) {
	var req struct {
		ChainID string `json:"chain_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	c.JSON(http.StatusOK, h.ctrl.HandleNetwork(req.ChainID))
}

func (h *Handlers) Switch(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.SwitchNetwork(c.Request.Context()))
}

// Message replaces the message input. An empty text clears it.
func (h *Handlers) Message(c *gin.Context) {
	var req struct {
		Text *string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	c.JSON(http.StatusOK, h.ctrl.HandleInput(*req.Text))
}

func (h *Handlers) Sign(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.SignMessage(c.Request.Context()))
}

func (h *Handlers) Verify(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.VerifyMessage(c.Request.Context()))
}
