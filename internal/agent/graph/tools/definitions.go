package tools

import (
	"github.com/cloudwego/eino/schema"
)

const (
	ToolListItems  = "list_items"
	ToolAddItem    = "add_item"
	ToolRemoveItem = "remove_item"
	ToolModifyItem = "modify_item"
)

// Names returns the function vocabulary understood by the Dispatcher.
func Names() []string {
	return []string{ToolListItems, ToolAddItem, ToolRemoveItem, ToolModifyItem}
}

func optionParams() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"optionKeys": {
			Type:     schema.Array,
			Desc:     "Option group keys chosen for the item, e.g. [\"size\", \"toppings\"]. Parallel to optionValues.",
			ElemInfo: &schema.ParameterInfo{Type: schema.String},
		},
		"optionValues": {
			Type: schema.Array,
			Desc: "For each entry of optionKeys, the list of values picked for that group, e.g. [[\"large\"], [\"bacon\", \"onion\"]].",
			ElemInfo: &schema.ParameterInfo{
				Type:     schema.Array,
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
			},
		},
	}
}

// ToolInfos describes the order functions to the planner.
func ToolInfos() []*schema.ToolInfo {
	addParams := optionParams()
	addParams["itemName"] = &schema.ParameterInfo{
		Type:     schema.String,
		Desc:     "Exact menu item name as listed on the menu.",
		Required: true,
	}

	modifyParams := optionParams()
	modifyParams["lineId"] = &schema.ParameterInfo{
		Type:     schema.String,
		Desc:     "Id of the order line to change, as returned by add_item or list_items.",
		Required: true,
	}
	modifyParams["itemName"] = &schema.ParameterInfo{
		Type: schema.String,
		Desc: "New menu item name. Omit to keep the current item.",
	}

	return []*schema.ToolInfo{
		{
			Name: ToolListItems,
			Desc: "List the lines of the current order in the order they were added, with price, validity and outstanding violations.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"limit": {
					Type: schema.Integer,
					Desc: "Maximum number of lines to return. Omit to list all lines.",
				},
			}),
		},
		{
			Name: ToolAddItem,
			Desc: "Add one menu item with its chosen options to the order. The line is always created; when it is not valid the result lists the violations to fix with modify_item.",
			ParamsOneOf: schema.NewParamsOneOfByParams(addParams),
		},
		{
			Name: ToolRemoveItem,
			Desc: "Remove a line from the order.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"lineId": {
					Type:     schema.String,
					Desc:     "Id of the order line to remove.",
					Required: true,
				},
			}),
		},
		{
			Name: ToolModifyItem,
			Desc: "Change the item and/or the options of an existing line. Options passed here replace all previous options of the line; omit them to keep the current ones.",
			ParamsOneOf: schema.NewParamsOneOfByParams(modifyParams),
		},
	}
}
