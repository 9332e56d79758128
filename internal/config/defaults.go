package config

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9981"
	defaultMarketSource    = "binance"
	defaultMarketREST      = "https://fapi.binance.com"
	defaultMarketInterval  = "1h"
	defaultMarketHistory   = 300
	defaultMarketTimeout   = 15
	defaultTradingMode     = "paper"
	defaultTradingCapital  = 10000
	defaultTradingMinStake = 10
	defaultProfileName     = "balanced"
	defaultProfilesPath    = "configs/profiles.yaml"
	defaultRebalanceCron   = "@every 4h"
	defaultJournalPath     = "data/decisions.db"
)

func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Market.applyDefaults()
	c.Trading.applyDefaults()
	c.Strategy.applyDefaults()
	c.Journal.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if a.Env == "" {
		a.Env = defaultAppEnv
	}
	if a.LogLevel == "" {
		a.LogLevel = defaultAppLogLevel
	}
	if a.HTTPAddr == "" {
		a.HTTPAddr = defaultAppHTTPAddr
	}
}

func (m *MarketConfig) applyDefaults() {
	if m.Source == "" {
		m.Source = defaultMarketSource
	}
	if m.RESTBaseURL == "" {
		m.RESTBaseURL = defaultMarketREST
	}
	if m.Interval == "" {
		m.Interval = defaultMarketInterval
	}
	if m.HistoryLimit <= 0 {
		m.HistoryLimit = defaultMarketHistory
	}
	if m.TimeoutSeconds <= 0 {
		m.TimeoutSeconds = defaultMarketTimeout
	}
	for i := range m.Instruments {
		if m.Instruments[i].Category == "" {
			m.Instruments[i].Category = "other"
		}
	}
}

func (t *TradingConfig) applyDefaults() {
	if t.Mode == "" {
		t.Mode = defaultTradingMode
	}
	if t.CapitalUSD <= 0 {
		t.CapitalUSD = defaultTradingCapital
	}
	if t.MinStakeUSD <= 0 {
		t.MinStakeUSD = defaultTradingMinStake
	}
	if t.MaxStakeUSD <= 0 {
		t.MaxStakeUSD = t.CapitalUSD
	}
}

func (s *StrategyConfig) applyDefaults() {
	if s.Profile == "" {
		s.Profile = defaultProfileName
	}
	if s.ProfilesPath == "" {
		s.ProfilesPath = defaultProfilesPath
	}
	if s.RebalanceCron == "" {
		s.RebalanceCron = defaultRebalanceCron
	}
}

func (j *JournalConfig) applyDefaults() {
	if j.Path == "" {
		j.Path = defaultJournalPath
	}
}
