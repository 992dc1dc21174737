package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/kwertop/logsbloom"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

var errNoRedisURI = errors.New("--redis-uri is required to use filters stored in redis")

func redisClient(c *cli.Context) (*redis.Client, error) {
	uri := c.String(redisURIFlag.Name)
	if uri == "" {
		return nil, errNoRedisURI
	}
	options, err := logsbloom.ParseRedisURI(uri)
	if err != nil {
		return nil, err
	}
	return logsbloom.NewRedisClient(*options), nil
}

// withRedis runs _fn_ against the filter at --redis-key. ok is false when no
// key was given and the command should use an in-memory filter.
func withRedis(c *cli.Context, fn func(*redis.Client, *logsbloom.RedisFilter) error) (ok bool, err error) {
	key := c.String(redisKeyFlag.Name)
	if key == "" {
		return false, nil
	}
	client, err := redisClient(c)
	if err != nil {
		return true, err
	}
	defer client.Close()
	filter, err := logsbloom.OpenRedisFilter(c.Context, client, key)
	if err != nil {
		return true, err
	}
	return true, fn(client, filter)
}

func loadFilter(c *cli.Context) (*logsbloom.Filter, error) {
	var filter *logsbloom.Filter
	ok, err := withRedis(c, func(_ *redis.Client, r *logsbloom.RedisFilter) error {
		var err error
		filter, err = r.Filter(c.Context)
		return err
	})
	if ok {
		return filter, err
	}
	if s := c.String(bloomFlag.Name); s != "" {
		return logsbloom.FromHex(s)
	}
	return logsbloom.New(), nil
}

func newFilter(c *cli.Context) error {
	key := c.String(redisKeyFlag.Name)
	if key == "" {
		fmt.Fprintln(c.App.Writer, logsbloom.New().Hex())
		return nil
	}
	client, err := redisClient(c)
	if err != nil {
		return err
	}
	defer client.Close()
	filter, err := logsbloom.NewRedisFilter(c.Context, client, key)
	if err != nil {
		return err
	}
	log.Info("Created empty filter", "key", filter.Key())
	fmt.Fprintln(c.App.Writer, filter.Key())
	return nil
}

func addElements(c *cli.Context) error {
	elements, err := logsbloom.DecodeTopics(c.Args().Slice())
	if err != nil {
		return err
	}
	ok, err := withRedis(c, func(_ *redis.Client, r *logsbloom.RedisFilter) error {
		for _, e := range elements {
			if err := r.Add(c.Context, e); err != nil {
				return err
			}
		}
		log.Info("Added elements", "key", r.Key(), "count", len(elements))
		return nil
	})
	if ok {
		return err
	}
	filter, err := loadFilter(c)
	if err != nil {
		return err
	}
	for _, e := range elements {
		filter.Add(e)
	}
	fmt.Fprintln(c.App.Writer, filter.Hex())
	return nil
}

func checkTopics(c *cli.Context) error {
	topics, err := logsbloom.DecodeTopics(c.Args().Slice())
	if err != nil {
		return err
	}
	legacy := c.Bool(legacyFlag.Name)
	var match bool
	ok, err := withRedis(c, func(_ *redis.Client, r *logsbloom.RedisFilter) error {
		var err error
		if legacy {
			match, err = r.MultiCheckLegacy(c.Context, topics)
		} else {
			match, err = r.MultiCheck(c.Context, topics)
		}
		return err
	})
	if !ok {
		var filter *logsbloom.Filter
		filter, err = loadFilter(c)
		if err != nil {
			return err
		}
		if legacy {
			match = filter.MultiCheckLegacy(topics)
		} else {
			match = filter.MultiCheck(topics)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, match)
	return nil
}

func unionFilters(c *cli.Context) error {
	others := make([]*logsbloom.Filter, 0, len(c.StringSlice(withFlag.Name)))
	for _, s := range c.StringSlice(withFlag.Name) {
		other, err := logsbloom.FromHex(s)
		if err != nil {
			return err
		}
		others = append(others, other)
	}
	withKeys := c.StringSlice(withKeyFlag.Name)

	ok, err := withRedis(c, func(client *redis.Client, r *logsbloom.RedisFilter) error {
		for _, other := range others {
			if err := r.UnionFilter(c.Context, other); err != nil {
				return err
			}
		}
		for _, key := range withKeys {
			other, err := logsbloom.OpenRedisFilter(c.Context, client, key)
			if err != nil {
				return err
			}
			if err := r.Union(c.Context, other); err != nil {
				return err
			}
		}
		merged, err := r.Filter(c.Context)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, merged.Hex())
		return nil
	})
	if ok {
		return err
	}

	filter, err := loadFilter(c)
	if err != nil {
		return err
	}
	if len(withKeys) > 0 {
		client, err := redisClient(c)
		if err != nil {
			return err
		}
		defer client.Close()
		for _, key := range withKeys {
			r, err := logsbloom.OpenRedisFilter(c.Context, client, key)
			if err != nil {
				return err
			}
			other, err := r.Filter(c.Context)
			if err != nil {
				return err
			}
			others = append(others, other)
		}
	}
	for _, other := range others {
		filter.Union(other)
	}
	fmt.Fprintln(c.App.Writer, filter.Hex())
	return nil
}

func filterInfo(c *cli.Context) error {
	filter, err := loadFilter(c)
	if err != nil {
		return err
	}
	locs := make([]string, 0, filter.BitCount())
	for _, loc := range filter.Locations() {
		locs = append(locs, fmt.Sprint(loc))
	}
	fmt.Fprintf(c.App.Writer, "bits: %d\n", filter.BitCount())
	fmt.Fprintf(c.App.Writer, "positive rate: %g\n", filter.PositiveRate())
	fmt.Fprintf(c.App.Writer, "locations: %s\n", strings.Join(locs, " "))
	return nil
}
