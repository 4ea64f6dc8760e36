package db

import (
	"context"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
)

type contextKey string

const feedAliasKey contextKey = "feed_alias"

var feedAliasPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// FeedAliasMiddleware resolves the feed scope of a request and stores it
// in the request context. Every feed item row carries this alias, so all
// downstream queries are scoped by it.
func FeedAliasMiddleware(defaultAlias string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			alias := extractFeedAlias(c, defaultAlias)
			if !feedAliasPattern.MatchString(alias) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid feed alias")
			}

			ctx := context.WithValue(c.Request().Context(), feedAliasKey, alias)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("feed_alias", alias)

			return next(c)
		}
	}
}

func extractFeedAlias(c echo.Context, defaultAlias string) string {
	// Token claim (set by the auth middleware) wins over the header.
	if alias, ok := c.Get("token_feed_alias").(string); ok && alias != "" {
		return alias
	}
	if alias := c.Request().Header.Get("X-Feed-Alias"); alias != "" {
		return alias
	}
	if alias := c.QueryParam("feed_alias"); alias != "" {
		return alias
	}
	return defaultAlias
}

// FeedAliasFromContext retrieves the feed alias resolved for the request.
func FeedAliasFromContext(ctx context.Context) string {
	alias, _ := ctx.Value(feedAliasKey).(string)
	return alias
}
