package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m5stack/m5doc/internal/knowledge"
	"github.com/m5stack/m5doc/internal/logger"
	"github.com/m5stack/m5doc/internal/metrics"
	"go.uber.org/zap"
)

// KnowledgeSearchToolName is the advertised tool name before any prefix
const KnowledgeSearchToolName = "knowledge_search"

const (
	defaultEntityCount = 1
	maxEntityCount     = 3
)

const knowledgeSearchDescription = `从M5Stack产品知识库中检索相关信息。这是一个专业的M5Stack产品、硬件、编程和芯片数据库查询工具。

【核心功能】
- 查询M5Stack产品的技术规格、参数、功能特性
- 检索产品兼容性、连接方式、引脚定义
- 获取编程API、代码示例、固件配置信息
- 查找芯片数据手册和技术细节

【必须触发此工具的场景】
当用户询问涉及以下任何内容时，务必调用此工具：
1. M5Stack品牌及产品（Core、Atom、StickC、Paper、Dial、Capsule等系列）
2. 硬件技术（模块、传感器、执行器、连接器、引脚、GPIO、接口、通讯协议如I2C/SPI/UART）
3. 编程开发（API、UIFlow、Arduino、MicroPython、固件、库函数、代码示例）
4. 技术参数（电气特性、尺寸、重量、SKU、兼容性、供电、性能指标）
5. 芯片相关（ESP32、芯片型号、数据手册、寄存器、技术规格）
6. 产品对比、选型建议、功能差异
7. 常见嵌入式问题解答（FAQ）、故障排除

【参数使用指南】
- query: 用清晰的关键词描述查询内容，必要时结合上下文重构查询语句
- num: 根据问题涉及的实体数量设置（默认1）
  * 询问单个产品/功能 → 1
  * 对比2个产品 → 2
  * 询问"有哪些"/"多少种"/"所有" → 3
- is_chip: 判断是否需要查询芯片数据手册
  * 明确提到芯片型号、数据手册、寄存器 → true
  * 询问底层技术原理、电气特性 → true
  * 仅询问产品使用、编程API → false
- filter_type: 限定文档类型（可选）
  * product → 产品文档（含停产产品）
  * product_no_eol → 在售产品文档
  * program → 编程与API文档
  * esphome → ESPHome配置文档
  * 不确定时不要传入此参数`

// Retriever answers knowledge_search queries
type Retriever interface {
	Retrieve(ctx context.Context, q knowledge.Query) (string, error)
}

// InvocationRecorder counts tool invocations
type InvocationRecorder interface {
	RecordInvocation(ctx context.Context, mode metrics.Mode)
}

// KnowledgeSearchTool exposes knowledge base retrieval as an MCP tool
type KnowledgeSearchTool struct {
	retriever Retriever
	recorder  InvocationRecorder
	name      string
	logger    *zap.Logger
}

// NewKnowledgeSearchTool creates the tool. A non-empty prefix is prepended
// to the advertised name.
func NewKnowledgeSearchTool(retriever Retriever, prefix string, log *zap.Logger) *KnowledgeSearchTool {
	if log == nil {
		log = zap.NewNop()
	}
	return &KnowledgeSearchTool{
		retriever: retriever,
		name:      prefix + KnowledgeSearchToolName,
		logger:    log.Named("knowledge_search"),
	}
}

// SetRecorder counts every call with a non-blank query on recorder
func (t *KnowledgeSearchTool) SetRecorder(recorder InvocationRecorder) {
	t.recorder = recorder
}

// Name returns the advertised tool name
func (t *KnowledgeSearchTool) Name() string {
	return t.name
}

// GetToolDefinition returns the MCP tool definition
func (t *KnowledgeSearchTool) GetToolDefinition() ToolDefinition {
	schemaMap := map[string]interface{}{
		"type":     "object",
		"required": []string{"query"},
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "知识库查询文本。使用清晰的关键词，包含产品名称、技术术语或功能描述。如果用户问题模糊，需结合对话上下文优化查询语句。",
			},
			"num": map[string]interface{}{
				"type":        "integer",
				"description": "问题涉及的实体数量，影响返回结果的丰富度。单个产品/功能=1，对比2个=2，询问'有哪些/多少/所有'=3。默认值: 1",
				"default":     defaultEntityCount,
				"minimum":     1,
				"maximum":     maxEntityCount,
			},
			"is_chip": map[string]interface{}{
				"type":        "boolean",
				"description": "是否需要查询芯片数据手册。当问题涉及芯片型号、数据手册、寄存器、底层电气特性时设为true；仅询问产品使用或API时设为false。默认值: false",
				"default":     false,
			},
			"filter_type": map[string]interface{}{
				"type":        "string",
				"description": "文档类型过滤。不传入时检索全部文档类型。",
				"enum":        knowledge.FilterTypes,
			},
		},
	}

	var inputSchema *jsonschema.Schema
	schemaBytes, err := json.Marshal(schemaMap)
	if err == nil {
		inputSchema = &jsonschema.Schema{}
		_ = json.Unmarshal(schemaBytes, inputSchema)
	}

	return ToolDefinition{
		Name:        t.name,
		Description: knowledgeSearchDescription,
		InputSchema: inputSchema,
	}
}

// HandleToolCall runs a knowledge search. A missing query is reported as
// ordinary text so the caller can correct it.
func (t *KnowledgeSearchTool) HandleToolCall(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
	q := parseKnowledgeQuery(params)
	log := logger.FromContext(ctx, t.logger)

	answer, err := t.retriever.Retrieve(ctx, q)
	if errors.Is(err, knowledge.ErrMissingQuery) {
		log.Info("knowledge search rejected", zap.Error(err))
		return CreateToolCallResult(knowledge.MissingQueryMessage), nil
	}

	if t.recorder != nil {
		t.recorder.RecordInvocation(ctx, metrics.ModeMCP)
	}

	var formatErr *knowledge.BackendFormatError
	switch {
	case err == nil:
		log.Debug("knowledge search answered", zap.Int("chars", len(answer)))
		return CreateToolCallResult(answer), nil
	case errors.As(err, &formatErr):
		return CreateToolCallErrorResult(fmt.Sprintf("knowledge search failed: backend returned malformed response: %v", formatErr.Err)), err
	default:
		return CreateToolCallErrorResult(fmt.Sprintf("knowledge search failed: %v", err)), err
	}
}

// parseKnowledgeQuery decodes tool arguments leniently. Invalid values fall
// back to their defaults.
func parseKnowledgeQuery(params map[string]interface{}) knowledge.Query {
	q := knowledge.Query{EntityCount: defaultEntityCount}

	if query, ok := params["query"].(string); ok {
		q.Text = query
	}
	if raw, ok := params["num"]; ok {
		q.EntityCount = clampEntityCount(parseEntityCount(raw))
	}
	if raw, ok := params["is_chip"]; ok {
		switch v := raw.(type) {
		case bool:
			q.NeedsChipDocs = v
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				q.NeedsChipDocs = b
			}
		}
	}
	if filterType, ok := params["filter_type"].(string); ok {
		q.FilterType = strings.TrimSpace(filterType)
	}

	return q
}

func parseEntityCount(raw interface{}) int {
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || v < 1 {
			return defaultEntityCount
		}
		if v > maxEntityCount {
			return maxEntityCount
		}
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parseEntityCount(f)
		}
	}
	return defaultEntityCount
}

func clampEntityCount(n int) int {
	if n < 1 {
		return defaultEntityCount
	}
	if n > maxEntityCount {
		return maxEntityCount
	}
	return n
}
