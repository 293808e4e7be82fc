package main

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigateway"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdynamodb"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

type LedgerStackProps struct {
	awscdk.StackProps
	// HandlerAsset is the directory holding the built get-accumulation binary.
	HandlerAsset string
}

// NewLedgerStack defines the events table and a read only api over the
// accumulation.
func NewLedgerStack(scope constructs.Construct, id string, props *LedgerStackProps) awscdk.Stack {
	stack := awscdk.NewStack(scope, &id, &props.StackProps)

	table := awsdynamodb.NewTable(stack, jsii.String("events"), &awsdynamodb.TableProps{
		PartitionKey:  &awsdynamodb.Attribute{Name: jsii.String("pk"), Type: awsdynamodb.AttributeType_STRING},
		SortKey:       &awsdynamodb.Attribute{Name: jsii.String("sk"), Type: awsdynamodb.AttributeType_STRING},
		BillingMode:   awsdynamodb.BillingMode_PAY_PER_REQUEST,
		RemovalPolicy: awscdk.RemovalPolicy_RETAIN,
	})

	handler := awslambda.NewFunction(stack, jsii.String("get-accumulation"), &awslambda.FunctionProps{
		Runtime: awslambda.Runtime_GO_1_X(),
		Handler: jsii.String("get-accumulation"),
		Code:    awslambda.Code_FromAsset(jsii.String(props.HandlerAsset), nil),
		Environment: &map[string]*string{
			"DYNAMODB_EVENTS_TABLE_NAME": table.TableName(),
		},
	})
	table.GrantReadData(handler)

	api := awsapigateway.NewLambdaRestApi(stack, jsii.String("ledger-api"), &awsapigateway.LambdaRestApiProps{
		Handler: handler,
		Proxy:   jsii.Bool(false),
	})
	api.Root().
		AddResource(jsii.String("{type}"), nil).
		AddResource(jsii.String("{key}"), nil).
		AddMethod(jsii.String("GET"), nil, nil)

	awscdk.NewCfnOutput(stack, jsii.String("events-table"), &awscdk.CfnOutputProps{Value: table.TableName()})

	return stack
}

func main() {
	app := awscdk.NewApp(nil)

	NewLedgerStack(app, "wee-ledger", &LedgerStackProps{
		HandlerAsset: "../serverless/get-accumulation/dist",
	})

	app.Synth(nil)
}

