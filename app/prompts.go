package app

import (
	"fmt"
	"strings"

	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/ports"
)

// Prompts mirror the production assistants. The models answer in the
// learner's language; the instructions stay fixed.

const (
	chatSystemPrompt     = "你是一个智能问答系统"
	questionSystemPrompt = "你是一个习题助手。请你帮完成我给的习题。"
	similarSystemPrompt  = "你是一个习题助手。我会给你一个原题，请你帮一道生成相似的题目。"
	summarySystemPrompt  = "你是一个专业的笔记总结助手。请帮助用户总结笔记要点，并保持逻辑清晰。"
	adviceSystemPrompt   = "你是一个贴心的生活助手，请给出简短的建议，字数200字左右。"
	profileSystemPrompt  = "你是一个智能助手，根据用户提供的信息更新其人物画像(120字左右)。"

	graphSystemPrompt = "你是一个专业的知识图谱构建助手。请根据用户提供的笔记内容，提取关键概念并构建知识图谱。" +
		"输出格式应为JSON，包含items(节点)和relations(关系)两个数组。"
)

func chatSystemMessage(profile string) llm.Message {
	content := chatSystemPrompt
	if profile != "" {
		content += fmt.Sprintf("，请参考用户画像：%s", profile)
	}
	return llm.System(content)
}

func questionPrompt(content string) []llm.Message {
	return []llm.Message{
		llm.System(questionSystemPrompt),
		llm.User(fmt.Sprintf("这是题目：\n%s\n请你给出这题的答案，尽量简练一点。", content)),
	}
}

func similarQuestionPrompt(content string) []llm.Message {
	return []llm.Message{
		llm.System(similarSystemPrompt),
		llm.User(fmt.Sprintf("这是原题目：\n%s\n请你帮我生成相似的题目，不需要给出答案。", content)),
	}
}

func summaryPrompt(notes []string) []llm.Message {
	return []llm.Message{
		llm.System(summarySystemPrompt),
		llm.User(fmt.Sprintf("这是我的笔记内容：\n%s\n请帮我总结这些笔记的主要内容，要点和关键信息。", strings.Join(notes, "\n"))),
	}
}

func advicePrompt(profile string) []llm.Message {
	return []llm.Message{
		llm.System(adviceSystemPrompt),
		llm.User(fmt.Sprintf("这是我的个人画像：%s，请根据我的特点给出一条建议，200字左右。", profile)),
	}
}

func graphPrompt(notes []string) []llm.Message {
	user := fmt.Sprintf(`请根据以下笔记内容构建知识图谱(如果两个item的关系是"无关"，不必输出他们的关系):
%s

请以如下JSON格式返回（不得输出"根据您提供的笔记内容"等多余内容，否则会导致解析失败）:
{
    "items": [
        {"name": "概念名称", "description": "概念描述"}
    ],
    "relations": [
        {"item_a": "概念A", "item_b": "概念B", "relation_type": "关系类型"}
    ]
}
请严格确保：
1. JSON格式合法，无重复键
2. relations中的item_a/item_b必须在items中存在
3. 描述字段用双引号包裹`, strings.Join(notes, " "))

	return []llm.Message{
		llm.System(graphSystemPrompt),
		llm.User(user),
	}
}

func profilePrompt(current, chats, notes string) []llm.Message {
	if current == "" {
		current = "无"
	}
	return []llm.Message{
		llm.System(profileSystemPrompt),
		llm.User(fmt.Sprintf("当前用户画像：%s", current)),
		llm.User(fmt.Sprintf("最近24小时聊天记录：%s", chats)),
		llm.User(fmt.Sprintf("最近24小时笔记：%s", notes)),
		llm.User("请根据以上信息更新用户画像，总结出用户的特点，例如：用户擅长数学，喜欢历史等。"),
	}
}

// noteText flattens a note and its media descriptions into prompt text.
func noteText(n ports.Note) string {
	parts := []string{n.Content}
	if n.ImageDescribe != "" {
		parts = append(parts, "图片描述: "+n.ImageDescribe)
	}
	if n.AudioDescribe != "" {
		parts = append(parts, "音频描述: "+n.AudioDescribe)
	}
	return strings.Join(parts, " ")
}
