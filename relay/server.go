package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Server exposes the relay's read-only status API. Everything it serves comes
// from the local cache and the pricer; it never calls a chain.
type Server struct {
	store  *Store
	pricer *Pricer
	cfg    *Config
	logger *zerolog.Logger
}

func NewServer(store *Store, pricer *Pricer, cfg *Config, logger *zerolog.Logger) *Server {
	return &Server{
		store:  store,
		pricer: pricer,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) RunWithContext(ctx context.Context, addr string) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Setup routes
	router.GET("/orders", s.getOrders)
	router.GET("/orders/:id", s.getOrder)
	router.GET("/balances/latest", s.getLatestBalances)
	router.GET("/balances/range", s.getBalancesInTimeRange)
	router.GET("/quote", s.getQuote)
	router.GET("/stats/settlements", s.getSettlementStats)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful server shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("server shutdown error")
		}
	}()

	// Start server
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) getOrders(c *gin.Context) {
	status := OrderStatusValue(c.Query("status"))

	orders, err := s.store.ListOrdersByStatus(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) getOrder(c *gin.Context) {
	orderID := c.Param("id")

	order, err := s.store.GetOrderStatus(orderID)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (s *Server) getLatestBalances(c *gin.Context) {
	network := c.Query("network")
	asInteger := c.Query("as_integer")

	balances, err := s.store.GetLatestBalances(network)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get balances"})
		return
	}

	if asInteger == "" {
		for i := range balances {
			balanceDecimal, err := decimal.NewFromString(balances[i].Balance)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected error"})
				return
			}
			balances[i].Balance = balanceDecimal.Shift(-int32(balances[i].Exponent)).String()
		}
	}

	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

func (s *Server) getBalancesInTimeRange(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	network := c.Query("network")

	if network == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "network is required"})
		return
	}

	var fromTime, toTime time.Time
	var err error

	if from != "" {
		fromTime, err = time.Parse("2006-01-02", from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date format, expected YYYY-MM-DD"})
			return
		}
	}

	if to != "" {
		toTime, err = time.Parse("2006-01-02", to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date format, expected YYYY-MM-DD"})
			return
		}
	}

	balances, err := s.store.GetBalancesInTimeRange(network, fromTime, toTime)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get balances"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

type QuoteResponse struct {
	CurrentRate      string `json:"current_rate"`
	OutputAmount     string `json:"output_amount"`
	FeeAmount        string `json:"fee_amount"`
	TotalCost        string `json:"total_cost"`
	TimeRemainingSec int64  `json:"time_remaining_seconds"`
}

// getQuote prices a hypothetical swap starting now, mainly for integrators
// sizing orders before depositing.
func (s *Server) getQuote(c *gin.Context) {
	fromChain := Chain(c.Query("from_chain"))
	toChain := Chain(c.Query("to_chain"))
	amountStr := c.Query("amount")

	if amountStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}

	codec := NewAmountCodec(s.cfg.MaxWholeUnits)
	amount, err := codec.ParseAmount(amountStr, fromChain.Decimals())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	baseRate, err := s.cfg.Auction.BaseRate(fromChain, toChain)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	result, err := s.pricer.CalculateRate(AuctionParams{
		FromChain:  fromChain,
		ToChain:    toChain,
		FromAmount: amount,
		BaseRate:   baseRate,
		StartTime:  now,
	}, now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quote": QuoteResponse{
		CurrentRate:      result.CurrentRate.String(),
		OutputAmount:     result.OutputAmount.String(),
		FeeAmount:        result.FeeAmount.String(),
		TotalCost:        result.TotalCost.String(),
		TimeRemainingSec: int64(result.TimeRemaining.Seconds()),
	}})
}

func (s *Server) getSettlementStats(c *gin.Context) {
	stats, err := s.store.GetSettlementStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settlements": stats})
}
