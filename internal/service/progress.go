package service

// maxErrorTail 进度快照中保留的错误尾部上限
const maxErrorTail = 50

// ItemError 单个条目的失败详情
type ItemError struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

// Progress 同步进度快照：每处理完一个条目发出一次，计数只增不减
type Progress struct {
	TotalItems      int         `json:"totalItems"`
	ProcessedItems  int         `json:"processedItems"`
	SuccessfulItems int         `json:"successfulItems"`
	FailedItems     int         `json:"failedItems"`
	CurrentItem     string      `json:"currentItem,omitempty"`
	Errors          []ItemError `json:"errors"`
}

// ProgressCallback 进度回调，条目处理完成后同步调用
type ProgressCallback func(p Progress)

// addError 记录失败条目，只保留最近maxErrorTail条
func (p *Progress) addError(item, detail string) {
	p.Errors = append(p.Errors, ItemError{Item: item, Error: detail})
	if len(p.Errors) > maxErrorTail {
		p.Errors = p.Errors[len(p.Errors)-maxErrorTail:]
	}
}

// ErrorTail 错误尾部的字符串形式（供运行状态持久化）
func (p *Progress) ErrorTail() []string {
	tail := make([]string, 0, len(p.Errors))
	for _, e := range p.Errors {
		tail = append(tail, e.Item+": "+e.Error)
	}
	return tail
}
