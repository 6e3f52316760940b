package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

const healthTimeout = 5 * time.Second

// hostInfo reports host load. Errors leave the fields out.
func hostInfo(ctx context.Context) gin.H {
	info := gin.H{}
	if cpuUsage, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuUsage) > 0 {
		info["cpu_usage"] = cpuUsage[0]
	}
	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info["memory_total"] = memInfo.Total
		info["memory_used"] = memInfo.Used
		info["memory_used_percent"] = memInfo.UsedPercent
	}
	return info
}

// Health resolves the default merchant wallet so a broken wallet
// configuration shows up before the first purchase does.
func (m *Marketplace) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	body := gin.H{
		"status":         "ok",
		"timestamp":      time.Now().UTC(),
		"uptime":         time.Since(m.started).Round(time.Second).String(),
		"activePayments": m.purchases.ActivePayments(),
		"ticketing":      m.tickets.Enabled(),
		"host":           hostInfo(ctx),
	}

	wallet, err := m.resolver.Resolve(ctx, m.cfg.MerchantWallet)
	if err != nil {
		m.log.Warn("health check could not resolve merchant wallet", zap.Error(err))
		body["status"] = "error"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["merchantWallet"] = gin.H{
		"id":         wallet.ID,
		"assetCode":  wallet.AssetCode,
		"assetScale": wallet.AssetScale,
		"authServer": wallet.AuthServer,
	}
	c.JSON(http.StatusOK, body)
}

func (m *Marketplace) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":           "Open Payments marketplace checkout",
		"merchantWallet": m.cfg.MerchantWallet,
		"clientWallet":   m.cfg.ClientWallet,
		"merchants":      len(m.cfg.Merchants),
		"endpoints": gin.H{
			"createPayment":   "POST /api/marketplace/create-payment",
			"callback":        "GET " + m.cfg.CallbackURL(),
			"completePayment": "POST /api/marketplace/complete-payment",
			"paymentStatus":   "GET /api/marketplace/payment-status/:paymentId",
			"paymentQR":       "GET /api/marketplace/payment-qr/:paymentId",
			"validateAccess":  "GET /api/validate-access?event=&token=",
			"health":          "GET /health",
		},
	})
}
