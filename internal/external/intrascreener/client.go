package intrascreener

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"github.com/wonny/sgloader/pkg/config"
	"github.com/wonny/sgloader/pkg/logger"
	"github.com/wonny/sgloader/pkg/waitutil"
)

// Export file names as served by the site
const (
	ohlFileName    = "Open High Low.csv"
	alertsFileName = "All Intrady Alerts.csv"
)

// Stock types of the OHL exports
const (
	StockTypeCash = "CASH"
	StockTypeFNO  = "FNO"
)

// Page paths
const (
	pathLogin       = "/login"
	pathMarketToday = "/stock-market-today"
)

// Site XPaths. The site is an Angular app without stable ids.
const (
	xpEmail       = `/html/body/app-root/div/app-login-layout/div/app-signin/div/div[1]/div/div[2]/div/div/div/div/div/div/form/div[1]/input`
	xpPassword    = `/html/body/app-root/div/app-login-layout/div/app-signin/div/div[1]/div/div[2]/div/div/div/div/div/div/form/div[2]/div/input`
	xpLoginButton = `/html/body/app-root/div/app-login-layout/div/app-signin/div/div[1]/div/div[2]/div/div/div/div/div/div/form/button`
	xpChartClose  = `/html/body/app-root/div/app-home-layout/div[1]/app-nav-bar/div[2]/div/div/div[1]/button`
	xpSessionBar  = `/html/body/app-root/div/app-home-layout/div[1]/app-nav-bar/div[1]/div[1]/button`
	xpIntradayNav = `/html/body/app-root/div/app-home-layout/div[1]/app-nav-bar/div[1]/div[2]/nav/div/ul/li[2]`
	xpAlertsLink  = xpIntradayNav + `/div/a[5]`
	xpOHLLink     = xpIntradayNav + `/div/a[9]`
	xpFNOTab      = `/html/body/app-root/div/app-home-layout/div[1]/app-index-panel/div/div[2]/div/button[1]`
	xpCashTab     = `/html/body/app-root/div/app-home-layout/div[1]/app-index-panel/div/div[2]/div/button[2]`
	xpOHLExport   = `/html/body/app-root/div/app-home-layout/div[2]/app-ohlc-scanner/div[1]/div[3]/div[1]/div[2]/button[1]`
	xpCSVExport   = `//button[contains(text(), 'CSV')]`

	xpBreadthBlock  = `/html/body/app-root/div/app-home-layout/div[2]/app-dashboard/div/div[2]/div[1]/div/div/div[2]/div[1]/div/div[2]/div[1]`
	xpBreadthSelect = xpBreadthBlock + `/select`
	xpAdvances      = xpBreadthBlock + `/span`
	xpDeclines      = xpBreadthBlock + `/span/span`

	cssIndexPanel = `app-index-panel`
)

// File is one downloaded export
type File struct {
	Name      string
	StockType string
	Data      []byte
}

// Client drives intradayscreener.com through a headless Chrome
// ⭐ SSOT: browser automation lives in this package only
type Client struct {
	cfg     config.ScreenerConfig
	browser config.BrowserConfig
	logger  *logger.Logger
}

// NewClient creates a new screener site client
func NewClient(cfg config.ScreenerConfig, browserCfg config.BrowserConfig, log *logger.Logger) *Client {
	return &Client{
		cfg:     cfg,
		browser: browserCfg,
		logger:  log.WithField("module", "intrascreener"),
	}
}

// session starts a fresh browser bounded by the page timeout budget
func (c *Client) session(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.browser.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	timeoutCtx, timeoutCancel := context.WithTimeout(browserCtx, budget)

	return timeoutCtx, func() {
		timeoutCancel()
		browserCancel()
		allocCancel()
	}
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

// login signs in and dismisses the overlays shown after login
func (c *Client) login() chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.Navigate(c.url(pathLogin)),
		chromedp.WaitVisible(xpEmail, chromedp.BySearch),
		chromedp.SendKeys(xpEmail, c.cfg.Email, chromedp.BySearch),
		chromedp.SendKeys(xpPassword, c.cfg.Password, chromedp.BySearch),
		chromedp.Click(xpLoginButton, chromedp.BySearch),
		chromedp.WaitVisible(xpIntradayNav, chromedp.BySearch),
		clickIfPresent(xpChartClose),
		clickIfPresent(xpSessionBar),
	}
}

// clickIfPresent clicks an optional overlay button
func clickIfPresent(xpath string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var found bool
		js := fmt.Sprintf(`(() => { const n = document.evaluate(%q, document, null, 9, null).singleNodeValue; if (n) { n.click(); return true } return false })()`, xpath)
		return chromedp.Evaluate(js, &found).Do(ctx)
	})
}

// openMenu navigates through the Intraday menu to link
func openMenu(link string) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.Click(xpIntradayNav, chromedp.BySearch),
		chromedp.WaitVisible(link, chromedp.BySearch),
		chromedp.Click(link, chromedp.BySearch),
	}
}

// download clicks an export button and waits for the file to settle
func (c *Client) download(ctx context.Context, exportXPath, fileName, stockType string) (File, error) {
	path := filepath.Join(c.cfg.DownloadDir, fileName)
	_ = os.Remove(path)

	if err := chromedp.Run(ctx,
		chromedp.WaitVisible(exportXPath, chromedp.BySearch),
		chromedp.Click(exportXPath, chromedp.BySearch),
	); err != nil {
		return File{}, fmt.Errorf("click export: %w", err)
	}

	if err := waitutil.FileReady(ctx, path, c.browser.DownloadWaitTimeout, c.browser.DownloadPoll); err != nil {
		return File{}, fmt.Errorf("wait for %s: %w", fileName, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", fileName, err)
	}
	if err := os.Remove(path); err != nil {
		c.logger.WithError(err).Warnf("Could not delete %s", path)
	}

	c.logger.WithFields(map[string]interface{}{
		"file":       fileName,
		"stock_type": stockType,
		"bytes":      len(data),
	}).Info("Export downloaded")
	return File{Name: fileName, StockType: stockType, Data: data}, nil
}

// withRetry runs one browser session per attempt
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return waitutil.Retry(ctx, c.browser.MaxRetries, c.browser.RetryBackoff, func(attempt int) error {
		budget := c.browser.PageTimeout*4 + c.browser.DownloadWaitTimeout*2
		sessCtx, cancel := c.session(ctx, budget)
		defer cancel()

		if err := chromedp.Run(sessCtx,
			browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
				WithDownloadPath(c.cfg.DownloadDir).
				WithEventsEnabled(true),
		); err != nil {
			return fmt.Errorf("set download behavior: %w", err)
		}

		err := fn(sessCtx)
		if err != nil {
			c.logger.WithError(err).
				WithFields(map[string]interface{}{"op": op, "attempt": attempt, "max": c.browser.MaxRetries}).
				Warn("Browser attempt failed")
		}
		return err
	})
}

// DownloadOpenHighLow exports the CASH then FNO Open-High-Low scans.
// A tab that fails is logged and skipped; an error is returned only when both fail.
func (c *Client) DownloadOpenHighLow(ctx context.Context) ([]File, error) {
	var files []File
	err := c.withRetry(ctx, "open_high_low", func(ctx context.Context) error {
		files = files[:0]
		if err := chromedp.Run(ctx, c.login(), openMenu(xpOHLLink), chromedp.Reload()); err != nil {
			return fmt.Errorf("open ohl scanner: %w", err)
		}

		var lastErr error
		for _, tab := range []struct{ xpath, stockType string }{
			{xpCashTab, StockTypeCash},
			{xpFNOTab, StockTypeFNO},
		} {
			if err := chromedp.Run(ctx, chromedp.Click(tab.xpath, chromedp.BySearch)); err != nil {
				lastErr = fmt.Errorf("%s tab: %w", tab.stockType, err)
				c.logger.WithError(err).Warnf("%s tab not available, skipping", tab.stockType)
				continue
			}
			f, err := c.download(ctx, xpOHLExport, ohlFileName, tab.stockType)
			if err != nil {
				lastErr = err
				c.logger.WithError(err).Warnf("%s export failed, skipping", tab.stockType)
				continue
			}
			files = append(files, f)
		}

		if len(files) == 0 {
			return lastErr
		}
		return nil
	})
	return files, err
}

// DownloadIntradayAlerts exports the intraday alerts scan
func (c *Client) DownloadIntradayAlerts(ctx context.Context) ([]File, error) {
	var file File
	err := c.withRetry(ctx, "intraday_alerts", func(ctx context.Context) error {
		if err := chromedp.Run(ctx, c.login(), openMenu(xpAlertsLink)); err != nil {
			return fmt.Errorf("open alerts page: %w", err)
		}
		f, err := c.download(ctx, xpCSVExport, alertsFileName, "")
		file = f
		return err
	})
	if err != nil {
		return nil, err
	}
	return []File{file}, nil
}

// MarketData scrapes the index panel and the advance/decline selector.
// The market page does not need a login.
func (c *Client) MarketData(ctx context.Context) (*MarketData, error) {
	var data *MarketData
	err := c.withRetry(ctx, "index_performance", func(ctx context.Context) error {
		var panelHTML, selectHTML string
		if err := chromedp.Run(ctx,
			chromedp.Navigate(c.url(pathMarketToday)),
			chromedp.WaitReady(cssIndexPanel, chromedp.ByQuery),
			chromedp.OuterHTML(cssIndexPanel, &panelHTML, chromedp.ByQuery),
			chromedp.WaitReady(xpBreadthSelect, chromedp.BySearch),
			chromedp.OuterHTML(xpBreadthSelect, &selectHTML, chromedp.BySearch),
		); err != nil {
			return fmt.Errorf("load market page: %w", err)
		}

		quotes, err := ParseIndexPanel(panelHTML)
		if err != nil {
			return err
		}
		options, err := ParseSelectOptions(selectHTML)
		if err != nil {
			return err
		}

		breadth := make(map[string]Breadth, len(options))
		for i, name := range options {
			b, err := c.readBreadth(ctx, i)
			if err != nil {
				return fmt.Errorf("breadth for %s: %w", name, err)
			}
			breadth[name] = b
		}

		data = &MarketData{Indices: quotes, Breadth: breadth}
		return nil
	})
	return data, err
}

// readBreadth selects option i and reads the "advances | declines" text
func (c *Client) readBreadth(ctx context.Context, i int) (Breadth, error) {
	selectJS := fmt.Sprintf(`(() => { const s = document.evaluate(%q, document, null, 9, null).singleNodeValue; s.selectedIndex = %d; s.dispatchEvent(new Event('change')); return true })()`, xpBreadthSelect, i)

	var ok bool
	var text string
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(selectJS, &ok),
		chromedp.Sleep(2*time.Second),
		chromedp.Text(xpAdvances, &text, chromedp.BySearch),
	); err != nil {
		return Breadth{}, err
	}

	if b, err := ParseAdvanceDecline(text); err == nil {
		return b, nil
	}

	var adv, dec string
	if err := chromedp.Run(ctx,
		chromedp.Text(xpAdvances, &adv, chromedp.BySearch),
		chromedp.Text(xpDeclines, &dec, chromedp.BySearch),
	); err != nil {
		return Breadth{}, err
	}
	return ParseAdvanceDecline(adv + "|" + dec)
}
