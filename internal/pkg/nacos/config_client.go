// internal/pkg/nacos/config_client.go
package nacos

import (
	"fmt"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

// ConfigClient 封装了 Nacos 配置中心客户端，
// 用于在启动后接收配置推送并热更新本地配置。
type ConfigClient struct {
	client    config_client.IConfigClient
	groupName string
}

// NewConfigClient 创建配置中心客户端。
func NewConfigClient(serverConfigs []constant.ServerConfig, clientConfig *constant.ClientConfig, groupName string) (*ConfigClient, error) {
	client, err := clients.NewConfigClient(
		vo.NacosClientParam{
			ClientConfig:  clientConfig,
			ServerConfigs: serverConfigs,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create nacos config client: %w", err)
	}
	return &ConfigClient{client: client, groupName: groupName}, nil
}

// Get 拉取一份配置内容。
func (c *ConfigClient) Get(dataId string) (string, error) {
	return c.client.GetConfig(vo.ConfigParam{
		DataId: dataId,
		Group:  c.groupName,
	})
}

// Listen 注册配置变更回调。回调在 Nacos 推送新配置时被调用。
func (c *ConfigClient) Listen(dataId string, onChange func(content string)) error {
	return c.client.ListenConfig(vo.ConfigParam{
		DataId: dataId,
		Group:  c.groupName,
		OnChange: func(namespace, group, dataId, data string) {
			onChange(data)
		},
	})
}

// CloseClient 关闭配置客户端。
func (c *ConfigClient) CloseClient() {
	c.client.CloseClient()
}
