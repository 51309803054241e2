package crud

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys are the English texts. English needs no entries of its own:
// a key missing from the catalog is formatted as is.
const (
	msgConnected         = "connected to database %q"
	msgDisconnected      = "disconnected"
	msgNoConnection      = "no active connection"
	msgInserted          = "inserted document %s into %s"
	msgRead              = "read %d document(s) from %s"
	msgUpdated           = "matched %d, modified %d document(s) in %s"
	msgUpserted          = "matched %d, modified %d document(s) in %s, upserted %s"
	msgDeleted           = "deleted %d document(s) from %s"
	msgNotConnected      = "no active connection; call connect first"
	msgConnectFailed     = "could not connect to the store"
	msgMalformedURI      = "malformed connection string"
	msgConnectTimeout    = "timed out connecting to the store"
	msgConnectionLost    = "connection to the store was lost; the session was closed, call connect again"
	msgDuplicateKey      = "duplicate key"
	msgStoreTimeout      = "store operation timed out"
	msgUnsupportedOp     = "operator not supported by the store"
	msgCanceled          = "operation canceled"
	msgStoreFailed       = "store operation failed"
	msgOperationFailed   = "operation failed"
	msgUnknownOperation  = "unknown operation %q"
	msgRequired          = "%s is required"
	msgMustBeString      = "%s must be a string, got %s"
	msgMustBeBoolean     = "%s must be a boolean, got %s"
	msgInvalidDocument   = "%s is not a valid document"
	msgMustBeJSONObject  = "%s must be a JSON object"
	msgMustBeObject      = "%s must be an object, got %s"
	msgMustBeInteger     = "%s must be an integer, got %v"
	msgNotNegative       = "%s must not be negative, got %d"
	msgNoNUL             = "%s must not contain NUL characters"
	msgNoDollar          = "%s must not contain '$', got %q"
	msgNoSystem          = "%s must not target a system collection, got %q"
	msgInvalidChar       = "%s contains invalid character %q"
	msgNeedsOperator     = "%s must contain at least one update operator such as $set"
	msgPlainUpdateField  = "%s must use update operators such as $set; found plain field %q"
	msgResultUnencodable = "result could not be encoded"
)

var chinese = map[string]string{
	msgConnected:         "成功连接到 MongoDB 数据库: %q",
	msgDisconnected:      "已成功断开 MongoDB 连接",
	msgNoConnection:      "当前没有活动的 MongoDB 连接",
	msgInserted:          "成功创建文档，ID: %s，集合: %s",
	msgRead:              "读取了 %d 个文档，集合: %s",
	msgUpdated:           "成功更新，匹配: %d, 修改: %d，集合: %s",
	msgUpserted:          "成功更新，匹配: %d, 修改: %d，集合: %s，新增: %s",
	msgDeleted:           "成功删除 %d 个文档，集合: %s",
	msgNotConnected:      "错误: 未连接到 MongoDB。请先使用 connect 工具连接数据库。",
	msgConnectFailed:     "连接 MongoDB 失败",
	msgMalformedURI:      "连接字符串格式错误",
	msgConnectTimeout:    "连接 MongoDB 超时",
	msgConnectionLost:    "与 MongoDB 的连接已断开，会话已关闭，请重新连接",
	msgDuplicateKey:      "键重复",
	msgStoreTimeout:      "数据库操作超时",
	msgUnsupportedOp:     "数据库不支持该操作符",
	msgCanceled:          "操作已取消",
	msgStoreFailed:       "数据库操作失败",
	msgOperationFailed:   "操作失败",
	msgUnknownOperation:  "未知操作 %q",
	msgRequired:          "缺少参数 %s",
	msgMustBeString:      "%s 必须是字符串，实际为 %s",
	msgMustBeBoolean:     "%s 必须是布尔值，实际为 %s",
	msgInvalidDocument:   "%s 不是有效的文档",
	msgMustBeJSONObject:  "%s 必须是 JSON 对象",
	msgMustBeObject:      "%s 必须是对象，实际为 %s",
	msgMustBeInteger:     "%s 必须是整数，实际为 %v",
	msgNotNegative:       "%s 不能为负数，实际为 %d",
	msgNoNUL:             "%s 不能包含 NUL 字符",
	msgNoDollar:          "%s 不能包含 '$'，实际为 %q",
	msgNoSystem:          "%s 不能指向系统集合，实际为 %q",
	msgInvalidChar:       "%s 包含无效字符 %q",
	msgNeedsOperator:     "%s 必须至少包含一个更新操作符，例如 $set",
	msgPlainUpdateField:  "%s 必须使用更新操作符，例如 $set；发现普通字段 %q",
	msgResultUnencodable: "结果无法编码",
}

var messages = newCatalog()

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range chinese {
		if err := b.SetString(language.Chinese, key, msg); err != nil {
			panic("crud: bad message " + key + ": " + err.Error())
		}
	}
	return b
}

// Languages lists the message languages besides the English default.
var Languages = []language.Tag{language.English, language.Chinese}

// NewPrinter returns a printer for operation messages in lang. Languages
// without a catalog fall back to English.
func NewPrinter(lang language.Tag) *message.Printer {
	return message.NewPrinter(lang, message.Catalog(messages))
}

var defaultPrinter = NewPrinter(language.English)
