package prefstore

import (
	"context"
	"strings"
	"time"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdProvider is the small KV surface the etcd preference store needs.
// Implementations panic with *kerror.Kerror on transport errors.
type EtcdProvider interface {
	Get(ctx context.Context, key string) EtcdKvItem
	Set(ctx context.Context, key, value string)
	// List returns keys with the given prefix in ascending key order.
	List(ctx context.Context, prefix string) []EtcdKvItem
	Close()
}

// EtcdKvItem: ModRevision is 0 when the key does not exist.
type EtcdKvItem struct {
	Key         string
	Value       string
	ModRevision int64
}

type etcdDefaultProvider struct {
	client *clientv3.Client
}

func NewDefaultEtcdProvider(ctx context.Context, endpoints []string, dialTimeoutMs int) EtcdProvider {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: time.Duration(dialTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		panic(kerror.Wrap(err, "EtcdConnectError", "failed to connect to etcd", false).
			WithErrorCode(kerror.EC_UNAVAILABLE).
			With("endpoints", strings.Join(endpoints, ",")))
	}
	klogging.Info(ctx).With("endpoints", strings.Join(endpoints, ",")).Log("EtcdConnected", "")
	return &etcdDefaultProvider{client: cli}
}

func (pvd *etcdDefaultProvider) Get(ctx context.Context, key string) EtcdKvItem {
	resp, err := pvd.client.Get(ctx, key)
	if err != nil {
		panic(kerror.Wrap(err, "EtcdGetError", "failed to get key from etcd", false).
			WithErrorCode(kerror.EC_NETWORK_ERR).
			With("key", key))
	}
	if len(resp.Kvs) == 0 {
		return EtcdKvItem{Key: key}
	}
	kv := resp.Kvs[0]
	return EtcdKvItem{Key: string(kv.Key), Value: string(kv.Value), ModRevision: kv.ModRevision}
}

func (pvd *etcdDefaultProvider) Set(ctx context.Context, key, value string) {
	if _, err := pvd.client.Put(ctx, key, value); err != nil {
		panic(kerror.Wrap(err, "EtcdPutError", "failed to set key in etcd", false).
			WithErrorCode(kerror.EC_NETWORK_ERR).
			With("key", key))
	}
}

func (pvd *etcdDefaultProvider) List(ctx context.Context, prefix string) []EtcdKvItem {
	resp, err := pvd.client.Get(ctx, prefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		panic(kerror.Wrap(err, "EtcdListError", "failed to list keys from etcd", false).
			WithErrorCode(kerror.EC_NETWORK_ERR).
			With("prefix", prefix))
	}
	items := make([]EtcdKvItem, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		items = append(items, EtcdKvItem{Key: string(kv.Key), Value: string(kv.Value), ModRevision: kv.ModRevision})
	}
	klogging.Verbose(ctx).With("prefix", prefix).With("count", len(items)).Log("EtcdList", "")
	return items
}

func (pvd *etcdDefaultProvider) Close() {
	pvd.client.Close()
}
