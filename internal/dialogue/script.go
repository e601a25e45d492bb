package dialogue

import "github.com/ashureev/ideation-study/internal/domain"

// Placeholder fills a summary slot the participant never answered.
const Placeholder = "（未记录）"

// script holds the ordered prompts of one feedback family.
type script struct {
	structured map[int]string // turns 1-10
	reflective map[int]string // turns 11-20

	structuredFallback string
	reflectiveFallback string
}

var focusedScript = script{
	structured: map[int]string{
		1:  "（聚焦反馈）我们开始吧。我先对齐你的目标：把想法变得更清晰并可推进。\n你想从哪个点切入？（载体 / 文化元素 / 故事氛围 / 符号颜色）",
		2:  "（聚焦反馈）继续说说你的选择：你为什么更偏向这个方向？给我 1–2 个关键词就行。",
		3:  "（聚焦反馈）你想做的成品更像什么？（海报/包装/空间导视/交互界面/短视频封面…）选一个最像的。",
		4:  "（聚焦反馈）你希望面向谁？（同龄人/游客/本地居民/学生/亲子…）给一个目标受众 + 一个使用场景。",
		5:  "（聚焦反馈）选 1 个最核心的文化元素：纹样/器物/工艺/仪式/故事。\n你最想用哪个？（写一个即可）",
		6:  "（聚焦反馈）为它加 2 个形容词：质朴/精致/热烈/神秘/克制/现代/传统… 你选哪两个？",
		7:  "（聚焦反馈）确定视觉锚点：你希望突出“图形符号”还是“故事画面”？二选一。",
		8:  "（聚焦反馈）来一句话概念（15字以内）：用“把___变成___”的句式写一下，我帮你润色。",
		9:  "（聚焦反馈）最后校验风格：你希望整体更“现代极简”还是“传统丰富”？二选一。",
		10: "（聚焦反馈）总结一下：\n- 载体：{carrier}\n- 受众/场景：{aud}\n- 核心元素：{elem}\n- 气质：{adj}\n- 概念句：{concept}\n\n如果你同意，建议下一步：①列3个参考 ②画2版构图草图。",
	},
	reflective: map[int]string{
		11: "（反思阶段）我们退一步看整体：你觉得目前概念里最清晰的一点是什么？（一句话）",
		12: "（反思阶段）那最模糊/最不确定的一点是什么？（一句话）",
		13: "（反思阶段）如果让它更可落地：你愿意优先改“内容表达”还是“形式呈现”？二选一。",
		14: "（反思阶段）给它一个明确的核心信息（10–15字）：你希望观众看完记住什么？",
		15: "（反思阶段）做一次风险检查：最可能被误解的地方是什么？你想怎么避免？",
		16: "（反思阶段）给 3 个关键词作为设计约束（例如：材质/色彩/符号风格）。你给哪 3 个？",
		17: "（反思阶段）请列 2 个你想参考的方向（品牌/作品类型/风格流派都行），为什么？",
		18: "（反思阶段）如果把它做成 A/B 两个版本：A更传统，B更当代。你更想保留哪一点不变？",
		19: "（反思阶段）自评一下：现在你对这个方案的清晰度从 1–7 你给几分？为什么？",
		20: "（反思阶段）最后收束：①你下一步最可执行的一件事是什么？②你希望我继续帮你做“润色概念句”还是“拆成制作清单”？",
	},
	structuredFallback: "（聚焦反馈）继续说说你的想法，我来帮你推进。",
	reflectiveFallback: "（反思阶段）你愿意补充一句：你现在最想把哪一点变得更清楚？",
}

var genericScript = script{
	structured: map[int]string{
		1:  "（通用反馈）我们开始吧。你想先从哪个点说起：载体 / 文化元素 / 故事氛围 / 符号颜色？",
		2:  "（通用反馈）为什么选这个方向？给我 1–2 个关键词就好。",
		3:  "（通用反馈）你想做的成品更像什么？（海报/包装/导视/界面/封面…）",
		4:  "（通用反馈）给一个目标受众 + 一个使用场景。",
		5:  "（通用反馈）选 1 个最核心的文化元素（纹样/器物/工艺/仪式/故事…）。",
		6:  "（通用反馈）再加 2 个形容词（比如热烈/克制/现代/传统…）。",
		7:  "（通用反馈）更想突出“图形符号”还是“故事画面”？",
		8:  "（通用反馈）写一句 15 字以内的概念句（“把___变成___”）。",
		9:  "（通用反馈）更偏“现代极简”还是“传统丰富”？",
		10: "（通用反馈）我们把要点收一下：载体/受众/元素/气质/概念句。下一步建议做参考收集+草图。",
	},
	reflective: map[int]string{
		11: "（反思）你觉得现在最清楚的一点是什么？（一句话）",
		12: "（反思）你觉得最不确定的一点是什么？（一句话）",
		13: "（反思）想继续完善的话，你更想改内容还是改形式？",
		14: "（反思）用 10–15 字写一句核心信息：你希望观众记住什么？",
		15: "（反思）你担心它会被怎么误解？",
		16: "（反思）给 3 个关键词当作约束（材质/色彩/符号风格）。",
		17: "（反思）列 2 个你想参考的方向，并说原因。",
		18: "（反思）如果做 A/B 两版（传统/当代），你更想保留什么不变？",
		19: "（反思）你对现在方案清晰度 1–7 给几分？为什么？",
		20: "（反思）最后：你下一步最可执行的一件事是什么？",
	},
	structuredFallback: "（通用反馈）继续说说你的想法，我来帮你推进。",
	reflectiveFallback: "（反思）你现在最想补充说明哪一点？",
}

// scriptFor selects the family by feedback. Unknown values use the generic family.
func scriptFor(feedback domain.Feedback) *script {
	if feedback == domain.FeedbackFocused {
		return &focusedScript
	}
	return &genericScript
}
